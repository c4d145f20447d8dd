package service

import "fmt"

// OAuthError carries the RFC 6749 wire error alongside the HTTP status the
// handler should answer with.
type OAuthError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Status      int    `json:"-"`
}

func (e *OAuthError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func newOAuthError(status int, code, description string) *OAuthError {
	return &OAuthError{Code: code, Description: description, Status: status}
}
