package client

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors delivered as the outcome of Send.
var (
	// ErrInvalidRequest reports a request that could not be turned into a
	// well-formed key or URL.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNoResponse reports a transport that returned neither a response nor
	// an error.
	ErrNoResponse = errors.New("unable to retrieve HTTP response")
)

func invalidRequest(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
}

// EncodingFailureReason explains a ParametersEncodingError.
type EncodingFailureReason int

// Parameter encoding failure reasons.
const (
	// ReasonEncodingFailed means the parameters could not be serialized.
	ReasonEncodingFailed EncodingFailureReason = iota
	// ReasonMissingRequestURL means the request had no URL to encode into.
	ReasonMissingRequestURL
	// ReasonURLAssemblyFailed means the URL could not be rebuilt after
	// adding query items.
	ReasonURLAssemblyFailed
)

func (r EncodingFailureReason) String() string {
	switch r {
	case ReasonEncodingFailed:
		return "encoding failed"
	case ReasonMissingRequestURL:
		return "unable to retrieve request URL"
	case ReasonURLAssemblyFailed:
		return "unable to assemble URL after adding query items"
	default:
		return fmt.Sprintf("EncodingFailureReason(%d)", int(r))
	}
}

// ParametersEncodingError reports a failure to encode request parameters.
type ParametersEncodingError struct {
	Reason EncodingFailureReason
	Err    error
}

func (e *ParametersEncodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parameters encoding error: %s: %v", e.Reason, e.Err)
	}
	return "parameters encoding error: " + e.Reason.String()
}

func (e *ParametersEncodingError) Unwrap() error {
	return e.Err
}

// ValidationFailureReason explains a ResponseValidationError.
type ValidationFailureReason int

// Response validation failure reasons.
const (
	// ReasonMissingContentType means the response had no Content-Type and
	// the acceptable set has no */* wildcard.
	ReasonMissingContentType ValidationFailureReason = iota
	// ReasonUnacceptableContentType means the Content-Type matched nothing
	// in the acceptable set.
	ReasonUnacceptableContentType
	// ReasonUnacceptableStatusCode means the status code is not acceptable.
	ReasonUnacceptableStatusCode
)

func (r ValidationFailureReason) String() string {
	switch r {
	case ReasonMissingContentType:
		return "missing content type"
	case ReasonUnacceptableContentType:
		return "unacceptable content type"
	case ReasonUnacceptableStatusCode:
		return "unacceptable status code"
	default:
		return fmt.Sprintf("ValidationFailureReason(%d)", int(r))
	}
}

// ResponseValidationError reports a response rejected by the request's
// acceptable status codes or content types. It carries the acceptable set
// and the observed value.
type ResponseValidationError struct {
	Reason                 ValidationFailureReason
	AcceptableContentTypes []string
	ContentType            string
	AcceptableStatusCodes  []int
	StatusCode             int
}

func (e *ResponseValidationError) Error() string {
	switch e.Reason {
	case ReasonMissingContentType:
		return fmt.Sprintf("response validation failed: missing content type, expected one of [%s]",
			strings.Join(e.AcceptableContentTypes, ", "))
	case ReasonUnacceptableContentType:
		return fmt.Sprintf("response validation failed: unacceptable content type %q, expected one of [%s]",
			e.ContentType, strings.Join(e.AcceptableContentTypes, ", "))
	default:
		return fmt.Sprintf("response validation failed: unacceptable status code %d", e.StatusCode)
	}
}

// IsInvalidRequest reports whether err is, or wraps, ErrInvalidRequest.
func IsInvalidRequest(err error) bool {
	return errors.Is(err, ErrInvalidRequest)
}
