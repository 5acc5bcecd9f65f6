package stub

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/oj"
)

// ErrNoStub is returned by Transport when no stub matches and no fallback is
// configured.
var ErrNoStub = errors.New("no stub matches request")

// Transport is an http.RoundTripper answering requests from a Store.
//
// A request is matched by trying, in order, its absolute URL, its request URI
// (path and query) and its bare path. Parameters come from a JSON object or
// form body when the request carries one. Without body parameters, a query
// string is also decoded into parameters ("a[]=1" arrays, "d[k]=v" mappings)
// and matched against the absolute URL and path with the query removed; query
// values are tried as JSON scalars first and then as plain strings. A stub
// carrying an Error fails the round trip with that error.
type Transport struct {
	Store *Store

	// Fallback handles requests no stub matches. Nil fails them with ErrNoStub.
	Fallback http.RoundTripper
}

// NewTransport returns a Transport serving from store with no fallback.
func NewTransport(store *Store) *Transport {
	return &Transport{Store: store}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	method, err := ParseMethod(req.Method)
	if err != nil {
		closeBody(req)
		return nil, err
	}
	params, err := bodyParams(req)
	if err != nil {
		return nil, err
	}

	keys, err := candidateKeys(req, method, params)
	if err != nil {
		return nil, err
	}
	if t.Store != nil {
		for _, key := range keys {
			if s, ok := t.Store.Lookup(key); ok {
				if s.Error != nil {
					return nil, s.Error
				}
				return stubHTTPResponse(req, s), nil
			}
		}
	}

	if t.Fallback != nil {
		return t.Fallback.RoundTrip(req)
	}
	return nil, fmt.Errorf("%w: %s", ErrNoStub, keys[0])
}

func candidateKeys(req *http.Request, method Method, params Params) ([]RequestKey, error) {
	var keys []RequestKey
	for _, u := range candidateURLs(req) {
		key, err := NewRequestKey(u, method, params)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if params != nil || req.URL.RawQuery == "" {
		return keys, nil
	}

	bare := *req.URL
	bare.RawQuery = ""
	bare.ForceQuery = false
	var urls []string
	if bare.IsAbs() {
		urls = append(urls, bare.String())
	}
	if bare.Path != "" {
		urls = append(urls, bare.Path)
	}
	query := req.URL.Query()
	for _, typed := range []bool{true, false} {
		qp := decodeQueryParams(query, typed)
		for _, u := range urls {
			keys = append(keys, RequestKey{URL: u, Method: method, Params: qp})
		}
	}
	return keys, nil
}

func candidateURLs(req *http.Request) []string {
	var out []string
	add := func(u string) {
		if u == "" {
			return
		}
		for _, seen := range out {
			if seen == u {
				return
			}
		}
		out = append(out, u)
	}
	if req.URL.IsAbs() {
		add(req.URL.String())
	}
	add(req.URL.RequestURI())
	add(req.URL.Path)
	return out
}

// bodyParams decodes a JSON object or form body into params and restores the
// body so a fallback transport can still read it.
func bodyParams(req *http.Request) (Params, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	data, err := io.ReadAll(req.Body)
	closeBody(req)
	if err != nil {
		return nil, err
	}
	req.Body = io.NopCloser(bytes.NewReader(data))

	mt, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	if mt == "application/x-www-form-urlencoded" {
		values, err := url.ParseQuery(string(data))
		if err != nil {
			return nil, nil
		}
		return decodeQueryParams(values, true), nil
	}
	if mt != "application/json" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		// Not an object; match without params.
		return nil, nil
	}
	norm, err := NormalizeValue(obj)
	if err != nil {
		return nil, err
	}
	params, _ := norm.(map[string]any)
	return params, nil
}

// decodeQueryParams reverses the client's query encoding. With typed set,
// values that parse as JSON scalars become numbers, booleans or null.
func decodeQueryParams(values url.Values, typed bool) Params {
	params := Params{}
	for name, vs := range values {
		path := splitQueryKey(name)
		for _, raw := range vs {
			var v any = raw
			if typed {
				v = queryScalar(raw)
			}
			params[path[0]] = placeQueryValue(params[path[0]], path[1:], v)
		}
	}
	return params
}

// splitQueryKey splits "d[k][]" into ["d", "k", ""]. Malformed keys are kept
// whole.
func splitQueryKey(name string) []string {
	open := strings.IndexByte(name, '[')
	if open <= 0 || !strings.HasSuffix(name, "]") {
		return []string{name}
	}
	path := []string{name[:open]}
	rest := name[open:]
	for rest != "" {
		if rest[0] != '[' {
			return []string{name}
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return []string{name}
		}
		path = append(path, rest[1:end])
		rest = rest[end+1:]
	}
	return path
}

func placeQueryValue(node any, path []string, v any) any {
	if len(path) == 0 {
		return v
	}
	if path[0] == "" {
		arr, _ := node.([]any)
		return append(arr, placeQueryValue(nil, path[1:], v))
	}
	m, _ := node.(map[string]any)
	if m == nil {
		m = map[string]any{}
	}
	m[path[0]] = placeQueryValue(m[path[0]], path[1:], v)
	return m
}

func queryScalar(raw string) any {
	if raw == "" {
		return raw
	}
	v, err := oj.ParseString(raw)
	if err != nil {
		return raw
	}
	switch v.(type) {
	case nil, bool, int64, float64:
		n, err := NormalizeValue(v)
		if err != nil {
			return raw
		}
		return n
	}
	return raw
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}

func stubHTTPResponse(req *http.Request, s ResponseStub) *http.Response {
	header := make(http.Header, len(s.Headers))
	for k, v := range s.Headers {
		header.Set(k, v)
	}
	body := s.Body
	if body == nil {
		body = []byte{}
	}
	return &http.Response{
		Status:        strconv.Itoa(s.StatusCode) + " " + http.StatusText(s.StatusCode),
		StatusCode:    s.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

var _ http.RoundTripper = (*Transport)(nil)
