package domain

import "time"

// User represents an end user that can authenticate and own upstream API credentials.
type User struct {
	ID             int64
	Email          string
	PasswordHash   string
	Name           string
	QuendooAPIKey  string
	EmailAPIKey    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
