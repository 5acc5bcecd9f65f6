package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/getmockd/netclient/pkg/stub"
)

// ParameterEncoder places request parameters on an outgoing request.
type ParameterEncoder interface {
	Encode(r *http.Request, params stub.Params) error
}

// Built-in encoders.
var (
	// DefaultEncoder puts parameters in the query string for GET, HEAD and
	// DELETE, and in a JSON body otherwise.
	DefaultEncoder ParameterEncoder = methodDependentEncoder{}
	// JSONEncoder always writes a JSON body.
	JSONEncoder ParameterEncoder = jsonEncoder{}
	// QueryEncoder always writes the query string.
	QueryEncoder ParameterEncoder = queryEncoder{}
	// FormEncoder writes an application/x-www-form-urlencoded body.
	FormEncoder ParameterEncoder = formEncoder{}
)

// encodeParams runs enc and normalizes its failure into a
// *ParametersEncodingError.
func encodeParams(enc ParameterEncoder, r *http.Request, params stub.Params) error {
	if enc == nil {
		enc = DefaultEncoder
	}
	err := enc.Encode(r, params)
	if err == nil {
		return nil
	}
	var perr *ParametersEncodingError
	if errors.As(err, &perr) {
		return err
	}
	return &ParametersEncodingError{Reason: ReasonEncodingFailed, Err: err}
}

type methodDependentEncoder struct{}

func (methodDependentEncoder) Encode(r *http.Request, params stub.Params) error {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodDelete:
		return queryEncoder{}.Encode(r, params)
	default:
		return jsonEncoder{}.Encode(r, params)
	}
}

type jsonEncoder struct{}

func (jsonEncoder) Encode(r *http.Request, params stub.Params) error {
	if r.URL == nil {
		return &ParametersEncodingError{Reason: ReasonMissingRequestURL}
	}
	if len(params) == 0 {
		return nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return &ParametersEncodingError{Reason: ReasonEncodingFailed, Err: err}
	}
	if r.Header.Get("Content-Type") == "" {
		r.Header.Set("Content-Type", "application/json")
	}
	setBody(r, data)
	return nil
}

type queryEncoder struct{}

func (queryEncoder) Encode(r *http.Request, params stub.Params) error {
	if r.URL == nil {
		return &ParametersEncodingError{Reason: ReasonMissingRequestURL}
	}
	if len(params) == 0 {
		return nil
	}
	query, err := EncodeQuery(params)
	if err != nil {
		return &ParametersEncodingError{Reason: ReasonEncodingFailed, Err: err}
	}
	raw := query
	if r.URL.RawQuery != "" {
		raw = r.URL.RawQuery + "&" + query
	}
	u := *r.URL
	u.RawQuery = raw
	rebuilt, err := url.Parse(u.String())
	if err != nil {
		return &ParametersEncodingError{Reason: ReasonURLAssemblyFailed, Err: err}
	}
	r.URL = rebuilt
	return nil
}

type formEncoder struct{}

func (formEncoder) Encode(r *http.Request, params stub.Params) error {
	if r.URL == nil {
		return &ParametersEncodingError{Reason: ReasonMissingRequestURL}
	}
	if len(params) == 0 {
		return nil
	}
	query, err := EncodeQuery(params)
	if err != nil {
		return &ParametersEncodingError{Reason: ReasonEncodingFailed, Err: err}
	}
	if r.Header.Get("Content-Type") == "" {
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")
	}
	setBody(r, []byte(query))
	return nil
}

func setBody(r *http.Request, data []byte) {
	r.Body = io.NopCloser(bytes.NewReader(data))
	r.ContentLength = int64(len(data))
	r.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
}

// EncodeQuery renders params as a URL query string. Keys are sorted; arrays
// become "key[]=v" pairs and nested mappings "key[sub]=v" pairs. Null values
// render as an empty value.
func EncodeQuery(params stub.Params) (string, error) {
	norm, err := stub.NormalizeValue(params)
	if err != nil {
		return "", err
	}
	var pairs []string
	m, _ := norm.(map[string]any)
	for _, k := range sortedKeys(m) {
		pairs = appendQueryPairs(pairs, k, m[k])
	}
	return strings.Join(pairs, "&"), nil
}

func appendQueryPairs(pairs []string, key string, v any) []string {
	switch t := v.(type) {
	case map[string]any:
		for _, k := range sortedKeys(t) {
			pairs = appendQueryPairs(pairs, key+"["+k+"]", t[k])
		}
		return pairs
	case []any:
		for _, e := range t {
			pairs = appendQueryPairs(pairs, key+"[]", e)
		}
		return pairs
	}
	return append(pairs, url.QueryEscape(key)+"="+url.QueryEscape(scalarString(v)))
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
