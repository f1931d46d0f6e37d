package domain

import "errors"

// Sentinel errors for the client.
var (
	ErrNotFound          = errors.New("resource not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidInput      = errors.New("invalid input")
	ErrEmptyMessage      = errors.New("message requires text or an attachment")
	ErrAttachmentTooBig  = errors.New("attachment exceeds the size limit")
	ErrAttachmentType    = errors.New("attachment type is not allowed")
	ErrMessageDeleted    = errors.New("message is deleted")
	ErrNotConnected      = errors.New("transport not connected")
	ErrSessionExpired    = errors.New("session token expired")
	ErrMalformedResponse = errors.New("malformed server response")
)
