// Package shared contains sentinel errors used across Collabdesk
// components.
package shared

import "errors"

var (

	// common errors
	ErrorNotFound = errors.New("not found")

	// transport-specific errors
	ErrorChannelNotOpen = errors.New("channel not open")
	ErrorSendExhausted  = errors.New("send retries exhausted")

	// auth-specific errors
	ErrorInvalidToken = errors.New("invalid token")
	ErrorTokenExpired = errors.New("token expired")

	// upload-specific errors
	ErrorUploadFailed = errors.New("upload failed")
)
