package models

import "time"

type User struct {
	ID        int       `json:"id" example:"1"`                   // User ID
	Email     string    `json:"email" example:"user@example.com"` // User email
	Name      string    `json:"name" example:"John Doe"`          // Display name
	PhotoURL  string    `json:"photoUrl,omitempty"`               // Profile photo reference
	Verified  bool      `json:"verified"`                         // Email verified
	CreatedAt time.Time `json:"createdAt"`
}
