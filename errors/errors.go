package errors

import (
	"errors"
	"fmt"
)

var (
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrMissingUser        = fmt.Errorf("missing/invalid user")
	ErrAlreadyLoggedIn    = fmt.Errorf("user already logged in")
	ErrMissingChannel     = fmt.Errorf("missing channel")
	ErrChannelExists      = fmt.Errorf("channel exists")
	ErrChannelNotFound    = fmt.Errorf("channel does not exist")
	ErrMissingDestination = fmt.Errorf("missing destination")
	ErrUnknownService     = fmt.Errorf("unknown service")
	ErrMalformedRequest   = fmt.Errorf("malformed request")
	ErrStorageUnavailable = fmt.Errorf("storage unavailable")
	ErrUnknownDriver      = fmt.Errorf("unknown driver")
	ErrInternal           = fmt.Errorf("internal error")
	ErrNoReply            = fmt.Errorf("no reply from server")
)

var replyErrors = []error{
	ErrMissingUser,
	ErrAlreadyLoggedIn,
	ErrMissingChannel,
	ErrChannelExists,
	ErrChannelNotFound,
	ErrMissingDestination,
	ErrUnknownService,
	ErrMalformedRequest,
	ErrStorageUnavailable,
}

// ReplyMessage returns the text sent back to a client for err.
// Errors that are not part of the protocol are reported as internal errors
// so storage or socket details never leak to clients.
func ReplyMessage(err error) string {
	for _, known := range replyErrors {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return ErrInternal.Error()
}
