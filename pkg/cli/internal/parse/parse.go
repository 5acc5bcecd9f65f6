// Package parse provides string parsing utilities for CLI commands.
package parse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/oj"

	"github.com/getmockd/netclient/pkg/stub"
)

// KeyValue parses a "key:value" or "key=value" string.
// If delimiters are provided, uses the first one found; otherwise defaults to ':'.
// Returns the key, value, and a boolean indicating success.
func KeyValue(s string, delimiters ...rune) (key, value string, ok bool) {
	if len(delimiters) == 0 {
		delimiters = []rune{':'}
	}

	for i, c := range s {
		for _, d := range delimiters {
			if c == d {
				return s[:i], s[i+1:], true
			}
		}
	}
	return "", "", false
}

// Headers parses a slice of "key:value" strings into a map.
// Values are trimmed of leading/trailing whitespace.
func Headers(headers []string) (map[string]string, error) {
	result := make(map[string]string, len(headers))
	for _, h := range headers {
		key, value, ok := KeyValue(h, ':')
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid header %q (expected Name: value)", h)
		}
		result[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return result, nil
}

// Params builds request parameters from a JSON object and "key=value" pairs.
// Pair values that parse as JSON keep their JSON type, so "page=2" is a
// number and "name=ann" a string. Pairs override keys from the object.
func Params(object string, pairs []string) (stub.Params, error) {
	params := stub.Params{}
	if strings.TrimSpace(object) != "" {
		doc, err := oj.ParseString(object)
		if err != nil {
			return nil, fmt.Errorf("invalid params JSON: %w", err)
		}
		m, ok := doc.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("params JSON must be an object, got %T", doc)
		}
		for k, v := range m {
			params[k] = v
		}
	}
	for _, p := range pairs {
		key, raw, ok := KeyValue(p, '=')
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid param %q (expected key=value)", p)
		}
		var value any = raw
		if raw != "" {
			if parsed, err := oj.ParseString(raw); err == nil {
				value = parsed
			}
		}
		params[key] = value
	}
	if len(params) == 0 {
		return nil, nil
	}
	normalized, err := stub.NormalizeValue(params)
	if err != nil {
		return nil, err
	}
	return normalized.(map[string]any), nil
}

// StatusCodes expands "200", "200-299" and "2xx" into a list of codes.
func StatusCodes(specs []string) ([]int, error) {
	var codes []int
	for _, s := range SplitAll(specs, ",") {
		switch {
		case len(s) == 3 && strings.HasSuffix(strings.ToLower(s), "xx"):
			class, err := strconv.Atoi(s[:1])
			if err != nil || class < 1 || class > 5 {
				return nil, fmt.Errorf("invalid status class %q", s)
			}
			for c := class * 100; c < class*100+100; c++ {
				codes = append(codes, c)
			}
		case strings.Contains(s, "-"):
			lo, hi, _ := strings.Cut(s, "-")
			from, err1 := strconv.Atoi(lo)
			to, err2 := strconv.Atoi(hi)
			if err1 != nil || err2 != nil || from > to {
				return nil, fmt.Errorf("invalid status range %q", s)
			}
			for c := from; c <= to; c++ {
				codes = append(codes, c)
			}
		default:
			c, err := strconv.Atoi(s)
			if err != nil {
				return nil, fmt.Errorf("invalid status code %q", s)
			}
			codes = append(codes, c)
		}
	}
	return codes, nil
}

// SplitTrim splits a string by separator and trims each part.
func SplitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// SplitAll applies SplitTrim to every value of a repeatable flag.
func SplitAll(values []string, sep string) []string {
	var out []string
	for _, v := range values {
		out = append(out, SplitTrim(v, sep)...)
	}
	return out
}
