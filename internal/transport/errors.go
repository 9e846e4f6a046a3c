package transport

import (
	"errors"
	"fmt"
)

// Kind categorizes a failed exchange with the collector.
type Kind string

const (
	// KindNetwork means the request never produced an HTTP response.
	KindNetwork Kind = "NETWORK"

	// KindHTTPStatus means the collector answered outside 2xx.
	KindHTTPStatus Kind = "HTTP_STATUS"

	// KindMalformed means the response body was not a JSON object.
	KindMalformed Kind = "MALFORMED_RESPONSE"

	// KindStatus means the body lacked "status":"ok".
	KindStatus Kind = "STATUS"

	// KindOffline is produced by the offline simulation mode.
	KindOffline Kind = "OFFLINE"
)

// Error describes why a send or probe failed.
type Error struct {
	Kind Kind

	// Status is the HTTP status, or 0 when none was determined.
	Status int

	Message string

	Err error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (status=%d)", e.Kind, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsOffline reports whether err means the collector could not be reached.
// Uses errors.As to handle wrapped errors.
func IsOffline(err error) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind == KindNetwork || te.Kind == KindOffline
	}
	return false
}

// KindOf returns the Kind of a transport error, or "" for other errors.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}
