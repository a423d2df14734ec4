package utils

import "strings"

// NormalizeVehicleNumber trims, uppercases and collapses inner whitespace so
// "ka 01  ab 1234" and "KA 01 AB 1234" are stored the same way.
func NormalizeVehicleNumber(raw string) string {
	return strings.ToUpper(strings.Join(strings.Fields(raw), " "))
}
