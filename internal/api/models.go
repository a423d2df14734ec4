package api

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// BookRequest books a specific spot when SpotID is set, otherwise the first
// free spot of the lot in the path.
type BookRequest struct {
	VehicleNumber string `json:"vehicle_number"`
	SpotID        *int64 `json:"spot_id,omitempty"`
}

type ResizeLotRequest struct {
	TotalSpots int `json:"total_spots"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
