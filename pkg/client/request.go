package client

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"time"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/getmockd/netclient/pkg/stub"
)

// Request describes one call. The URL is resolved against BaseURL, or the
// client's base URL when BaseURL is empty. The stub key uses URL exactly as
// written.
type Request struct {
	URL     string
	Method  stub.Method
	Params  stub.Params
	Headers http.Header

	// BaseURL overrides the client's base URL for this request.
	BaseURL string

	// Encoder controls where Params go. Nil selects DefaultEncoder.
	Encoder ParameterEncoder

	// AcceptableStatusCodes, when set, rejects other status codes with a
	// *ResponseValidationError.
	AcceptableStatusCodes []int

	// AcceptableContentTypes, when set, rejects responses whose Content-Type
	// matches none of the entries. Entries may use */* and type/* wildcards.
	AcceptableContentTypes []string
}

// NewRequest builds a request without parameters.
func NewRequest(method stub.Method, url string) *Request {
	return &Request{URL: url, Method: method}
}

// Key returns the stub matching key for the request.
func (r *Request) Key() (stub.RequestKey, error) {
	if r == nil {
		return stub.RequestKey{}, invalidRequest(errors.New("nil request"))
	}
	if r.URL == "" {
		return stub.RequestKey{}, invalidRequest(errors.New("empty URL"))
	}
	if !r.Method.Valid() {
		return stub.RequestKey{}, invalidRequest(errors.New("unsupported method " + string(r.Method)))
	}
	key, err := stub.NewRequestKey(r.URL, r.Method, r.Params)
	if err != nil {
		return stub.RequestKey{}, invalidRequest(err)
	}
	return key, nil
}

// StatusCodes returns the inclusive range [from, to].
func StatusCodes(from, to int) []int {
	if to < from {
		return nil
	}
	out := make([]int, 0, to-from+1)
	for c := from; c <= to; c++ {
		out = append(out, c)
	}
	return out
}

// SuccessStatusCodes is the 2xx range.
var SuccessStatusCodes = StatusCodes(200, 299)

// Response is the resolved outcome of a request.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// FromStub is true when the response was synthesized from a stub.
	FromStub bool
}

// Text returns the body as a string.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return string(r.Body)
}

// Decoded returns the body converted to UTF-8 from the charset named in the
// Content-Type header. Without a charset the body is returned as is. For an
// unknown charset the raw body is returned with the error.
func (r *Response) Decoded() (string, error) {
	if r == nil {
		return "", nil
	}
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || params["charset"] == "" {
		return string(r.Body), nil
	}
	enc, err := htmlindex.Get(params["charset"])
	if err != nil {
		return string(r.Body), fmt.Errorf("unsupported charset %q: %w", params["charset"], err)
	}
	out, err := enc.NewDecoder().Bytes(r.Body)
	if err != nil {
		return string(r.Body), fmt.Errorf("decode %s body: %w", params["charset"], err)
	}
	return string(out), nil
}

// Context is handed to AfterReceive with the resolved outcome of one Send.
type Context struct {
	// ID uniquely identifies the Send call.
	ID string

	Request *Request

	// HTTPRequest is the request given to the transport. It is nil when the
	// request was served from a stub or could not be built.
	HTTPRequest *http.Request

	Response *Response
	Err      error

	// Stubbed is true when the stub store answered the request.
	Stubbed bool

	Started  time.Time
	Duration time.Duration
}

// Failed reports whether the outcome is an error.
func (c *Context) Failed() bool {
	return c.Err != nil
}
