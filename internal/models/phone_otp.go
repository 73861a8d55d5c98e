package models

import "time"

// PhoneOTP is one pending code in the phone_otps table. Only the newest row
// per phone is authoritative.
type PhoneOTP struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExpiredAt reports whether the code is no longer usable at t.
func (o *PhoneOTP) ExpiredAt(t time.Time) bool {
	return !t.Before(o.ExpiresAt)
}
