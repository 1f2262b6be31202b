package chirp

import (
	"errors"
	"strconv"
)

// Error is a Chirp server error code. Servers report failure as a negative
// integer on the response line; the client converts the integer to an Error
// before it reaches any caller, so a raw code never escapes the wire layer.
//
// Codes outside the table below (the protocol reserves -127 for unknown
// failures, but any unlisted negative value is treated the same way) still
// convert to an Error; their description carries the numeric code.
type Error int32

// Error codes defined by the Chirp protocol.
const (
	ErrorNotAuthenticated Error = -1  // client has not authenticated
	ErrorNotAuthorized    Error = -2  // client may not perform that action
	ErrorDoesntExist      Error = -3  // no object by that name
	ErrorAlreadyExists    Error = -4  // an object by that name already exists
	ErrorTooBig           Error = -5  // request too big to execute
	ErrorNoSpace          Error = -6  // not enough space to store that
	ErrorNoMemory         Error = -7  // server is out of memory
	ErrorInvalidRequest   Error = -8  // the form of the request is invalid
	ErrorTooManyOpen      Error = -9  // too many resources in use
	ErrorBusy             Error = -10 // object is in use by someone else
	ErrorTryAgain         Error = -11 // a temporary condition prevented the request
	ErrorBadFD            Error = -12 // the file descriptor requested is invalid
	ErrorIsDir            Error = -13 // file-only operation attempted on a directory
	ErrorNotDir           Error = -14 // directory operation attempted on a file
	ErrorNotEmpty         Error = -15 // directory is not empty
	ErrorCrossDeviceLink  Error = -16 // hard link attempted across devices
	ErrorOffline          Error = -17 // resource is temporarily not available
)

var errorDescriptions = map[Error]string{
	ErrorNotAuthenticated: "the client has not authenticated its identity",
	ErrorNotAuthorized:    "the client is not authorized to perform that action",
	ErrorDoesntExist:      "there is no object by that name",
	ErrorAlreadyExists:    "there is already an object by that name",
	ErrorTooBig:           "that request is too big to execute",
	ErrorNoSpace:          "there is not enough space to store that",
	ErrorNoMemory:         "the server is out of memory",
	ErrorInvalidRequest:   "the form of the request is invalid",
	ErrorTooManyOpen:      "there are too many resources in use",
	ErrorBusy:             "that object is in use by someone else",
	ErrorTryAgain:         "a temporary condition prevented the request",
	ErrorBadFD:            "the file descriptor requested is invalid",
	ErrorIsDir:            "a file-only operation was attempted on a directory",
	ErrorNotDir:           "a directory operation was attempted on a file",
	ErrorNotEmpty:         "a directory cannot be removed because it is not empty",
	ErrorCrossDeviceLink:  "a hard link was attempted across devices",
	ErrorOffline:          "the requested resource is temporarily not available",
}

// Known reports whether e is one of the codes defined by the protocol.
func (e Error) Known() bool {
	_, ok := errorDescriptions[e]
	return ok
}

// Error prints the description of the error.
func (e Error) Error() string {
	desc := errorDescriptions[e]
	if desc != "" {
		return desc
	}
	return "unknown chirp error (" + strconv.Itoa(int(e)) + ")"
}

// TransportError reports a connection-level fault: a failed dial, a timeout,
// a reset connection or a short read or write. It is distinct from Error,
// which only ever carries a failure the server itself reported.
type TransportError struct {
	Op  string // protocol step that failed, e.g. "dial" or "read"
	Err error
}

// Error implements error.
func (e *TransportError) Error() string {
	return "chirp: " + e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying fault.
func (e *TransportError) Unwrap() error { return e.Err }

func transportf(op string, err error) error {
	return &TransportError{Op: op, Err: err}
}

// ArgError reports an argument that the client rejected locally, before any
// command was sent to the server.
type ArgError struct {
	Arg    string
	Reason string
}

// Error implements error.
func (e *ArgError) Error() string {
	return "chirp: invalid " + e.Arg + ": " + e.Reason
}

// ErrResponseTooLarge is returned when a response line exceeds LineMax
// before a terminator is seen.
var ErrResponseTooLarge = errors.New("chirp: the server responded with too much data")

// responseError converts a negative response-line code into its Error.
// Non-negative codes are never errors and must not be passed here.
func responseError(code int64) error {
	return Error(code)
}
