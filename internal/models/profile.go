package models

// Profile is the read-only slice of the profiles table this service needs.
type Profile struct {
	ID    string `json:"id"`
	Phone string `json:"phone"`
}
