package models

import "errors"

// Error taxonomy for the messaging core. Validation and authorization
// failures surface synchronously to the initiating action; polling errors
// are aggregated by the sync layer and never surfaced per tick.
var (
	// ErrMalformedThreadID marks a thread id that does not parse as
	// "{kind}-{integer}". A caller hitting this has a programming error;
	// it should never reach a user.
	ErrMalformedThreadID = errors.New("malformed thread id")

	// ErrThreadAccessDenied marks an actor touching a thread it does not
	// own. The HTTP layer masks it as a generic not-found so thread
	// existence is not leaked.
	ErrThreadAccessDenied = errors.New("thread access denied")

	// ErrEmptyMessage marks a send with neither text nor an image. No
	// mutation occurs.
	ErrEmptyMessage = errors.New("empty message")

	// ErrUploadFailed marks an attachment that was rejected or could not
	// be stored. Message creation is not attempted.
	ErrUploadFailed = errors.New("upload failed")

	// ErrSendInFlight marks a send attempted while another send on the
	// same composer is still pending.
	ErrSendInFlight = errors.New("send already in flight")
)
