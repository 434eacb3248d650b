package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Transport and API errors
	ErrTransport          = fmt.Errorf("transport failure")
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrStreamClosed       = fmt.Errorf("stream closed")
	ErrTimeout            = fmt.Errorf("operation timed out")

	// Payload errors
	ErrMalformedEvent    = fmt.Errorf("malformed event")
	ErrMalformedResponse = fmt.Errorf("malformed response")

	// Store and action errors
	ErrUnknownEntry      = fmt.Errorf("entry not found")
	ErrCancelled         = fmt.Errorf("cancelled")
	ErrNothingToProcess  = fmt.Errorf("no entries to process")
	ErrClipboard         = fmt.Errorf("clipboard write failed")
	ErrPartialFailure    = fmt.Errorf("some items failed")
	ErrUnsupportedFormat = fmt.Errorf("unsupported format")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
