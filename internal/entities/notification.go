package entities

// EmailData feeds the HTML email template.
type EmailData struct {
	UserName      string
	Heading       string
	Intro         string
	LotName       string
	SpotNumber    string
	VehicleNumber string
	StartTime     string
	EndTime       string
	Amount        string
	CurrentYear   int
}
