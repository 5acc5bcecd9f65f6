package stub

import (
	"fmt"
	"maps"
	"net/http"
	"slices"

	"github.com/cespare/xxhash/v2"
)

// Method is an HTTP request method. Values are case-sensitive.
type Method string

// Supported methods.
const (
	MethodGet     Method = http.MethodGet
	MethodPost    Method = http.MethodPost
	MethodPut     Method = http.MethodPut
	MethodDelete  Method = http.MethodDelete
	MethodPatch   Method = http.MethodPatch
	MethodHead    Method = http.MethodHead
	MethodOptions Method = http.MethodOptions
	MethodTrace   Method = http.MethodTrace
	MethodConnect Method = http.MethodConnect
)

// Methods lists every supported method in a stable order.
var Methods = []Method{
	MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch,
	MethodHead, MethodOptions, MethodTrace, MethodConnect,
}

// Valid reports whether m is one of the supported methods.
func (m Method) Valid() bool {
	return slices.Contains(Methods, m)
}

// ParseMethod converts s to a Method. Matching is case-sensitive.
func ParseMethod(s string) (Method, error) {
	m := Method(s)
	if !m.Valid() {
		return "", fmt.Errorf("unsupported method %q", s)
	}
	return m, nil
}

// Params holds JSON-typed request parameters.
type Params = map[string]any

// RequestKey identifies a request for stub matching.
//
// Two keys are equal when URL, Method and Params are equal. Params are compared
// by value after canonicalization, so member order inside mappings does not
// matter and numbers compare numerically. A nil Params and an empty Params are
// equal. The fields may be changed freely; equality and hashing always reflect
// their current values.
type RequestKey struct {
	URL    string
	Method Method
	Params Params
}

// NewRequestKey builds a key and validates its parameters. It fails when a
// parameter value has no JSON representation.
func NewRequestKey(url string, method Method, params Params) (RequestKey, error) {
	if _, err := canonicalParams(params); err != nil {
		return RequestKey{}, err
	}
	return RequestKey{URL: url, Method: method, Params: params}, nil
}

// MustRequestKey is like NewRequestKey but panics on invalid parameters.
func MustRequestKey(url string, method Method, params Params) RequestKey {
	k, err := NewRequestKey(url, method, params)
	if err != nil {
		panic(err)
	}
	return k
}

// Canonical returns the canonical string form of the key. Equal keys always
// produce the same canonical form.
func (k RequestKey) Canonical() string {
	pc, err := canonicalParams(k.Params)
	if err != nil {
		// Unrepresentable params can only equal themselves.
		pc = fmt.Sprintf("!invalid:%p", k.Params)
	}
	return canonicalKey(k.URL, k.Method, pc)
}

// Hash returns a 64-bit hash consistent with Equal.
func (k RequestKey) Hash() uint64 {
	return hashCanonical(k.Canonical())
}

// Equal reports whether k and other identify the same request.
func (k RequestKey) Equal(other RequestKey) bool {
	if k.URL != other.URL || k.Method != other.Method {
		return false
	}
	return k.Canonical() == other.Canonical()
}

// String implements fmt.Stringer.
func (k RequestKey) String() string {
	return k.Canonical()
}

// Clone returns a key whose Params are a normalized deep copy, sharing no
// mutable state with k. Params that cannot be normalized are kept as is.
func (k RequestKey) Clone() RequestKey {
	if k.Params == nil {
		return k
	}
	norm, err := NormalizeValue(k.Params)
	if err != nil {
		return k
	}
	params, _ := norm.(map[string]any)
	k.Params = params
	return k
}

func hashCanonical(canon string) uint64 {
	return xxhash.Sum64String(canon)
}

func canonicalKey(url string, method Method, params string) string {
	if params == "" {
		return string(method) + " " + url
	}
	return string(method) + " " + url + " " + params
}

// Error is a stub-defined failure delivered instead of a response body.
type Error struct {
	Domain  string `json:"domain" yaml:"domain"`
	Code    int    `json:"code" yaml:"code"`
	Message string `json:"message" yaml:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (domain=%s code=%d)", e.Message, e.Domain, e.Code)
}

// ResponseStub is a canned response. When Error is set it takes precedence
// over Body.
type ResponseStub struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Error      *Error
}

// NewResponseStub returns a 200 stub carrying body.
func NewResponseStub(body []byte) ResponseStub {
	return ResponseStub{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{},
		Body:       body,
	}
}

// HasBody reports whether the stub carries a body.
func (s ResponseStub) HasBody() bool {
	return s.Body != nil
}

// Clone returns a deep copy of s.
func (s ResponseStub) Clone() ResponseStub {
	out := ResponseStub{
		StatusCode: s.StatusCode,
		Headers:    maps.Clone(s.Headers),
	}
	if out.Headers == nil {
		out.Headers = map[string]string{}
	}
	if s.Body != nil {
		out.Body = slices.Clone(s.Body)
	}
	if s.Error != nil {
		e := *s.Error
		out.Error = &e
	}
	return out
}

// Equal reports whether two stubs carry the same response.
func (s ResponseStub) Equal(other ResponseStub) bool {
	if s.StatusCode != other.StatusCode {
		return false
	}
	if len(s.Headers) != len(other.Headers) || !maps.Equal(s.Headers, other.Headers) {
		return false
	}
	if (s.Body == nil) != (other.Body == nil) || string(s.Body) != string(other.Body) {
		return false
	}
	switch {
	case s.Error == nil && other.Error == nil:
		return true
	case s.Error == nil || other.Error == nil:
		return false
	default:
		return *s.Error == *other.Error
	}
}

// Entry pairs a request key with its stub, as read from a definition file.
type Entry struct {
	Key      RequestKey
	Response ResponseStub
}
