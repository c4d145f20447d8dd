package domain

import "errors"

// Sentinel errors shared across services. Handlers translate these into
// OAuth-standard wire errors; services wrap them with context for logs.
var (
	ErrInvalidClientMetadata = errors.New("invalid client metadata")
	ErrUnknownClient         = errors.New("unknown client")
	ErrInvalidGrant          = errors.New("invalid grant")
	ErrInvalidToken          = errors.New("invalid token")
	ErrExpiredToken          = errors.New("token expired")
	ErrRevokedToken          = errors.New("token revoked")
	ErrNoCredential          = errors.New("no credential available")
	ErrUserNotFound          = errors.New("user not found")
)
