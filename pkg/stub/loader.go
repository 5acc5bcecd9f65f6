package stub

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Format identifies the encoding of a definition file.
type Format string

// Supported definition file formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath picks the format from the file extension (.yaml and .yml are
// YAML, everything else is JSON).
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// fileEntry mirrors one object of a definition file.
type fileEntry struct {
	URL          string         `json:"url"`
	Method       string         `json:"method"`
	Params       map[string]any `json:"params,omitempty"`
	ResponseStub fileResponse   `json:"responseStub"`
}

type fileResponse struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       *string           `json:"body,omitempty"`
	Error      *Error            `json:"error,omitempty"`
}

// Load reads a definition file and returns its entries in file order.
//
// A path that does not resolve to a readable regular file fails with
// *FileNotExistsError. Content that cannot be decoded fails with
// *DecodingError. Load has no side effects beyond the read.
func Load(path string) ([]Entry, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	entries, err := Parse(data, FormatForPath(path))
	if err != nil {
		var derr *DecodingError
		if errors.As(err, &derr) {
			derr.Path = path
		}
		return nil, err
	}
	return entries, nil
}

// LoadGlob loads every file matching pattern, in lexical path order, and
// returns the concatenated entries. The pattern supports ** for recursive
// matching. A pattern without matches yields no entries. The first failing
// file aborts the load with that file's error.
func LoadGlob(pattern string) ([]Entry, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("expanding glob pattern %q: %w", pattern, err)
	}
	sort.Strings(matches)

	var result []Entry
	for _, match := range matches {
		if info, err := os.Stat(match); err == nil && info.IsDir() {
			continue
		}
		entries, err := Load(match)
		if err != nil {
			return nil, err
		}
		result = append(result, entries...)
	}
	return result, nil
}

func readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &FileNotExistsError{Path: path, Err: err}
	}
	if !info.Mode().IsRegular() {
		return nil, &FileNotExistsError{Path: path, Err: errors.New("not a regular file")}
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, &FileNotExistsError{Path: path, Err: err}
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, &FileNotExistsError{Path: path, Err: err}
	}
	return data, nil
}

// Parse decodes an in-memory definition document.
func Parse(data []byte, format Format) ([]Entry, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &DecodingError{Offset: -1, Message: "file is empty"}
	}

	if format == FormatYAML {
		converted, err := yamlToJSON(data)
		if err != nil {
			return nil, err
		}
		data = converted
	}

	doc, err := decodeDocument(data)
	if err != nil {
		return nil, err
	}
	if err := validateDocument(doc); err != nil {
		return nil, err
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, decodeError("", err)
	}

	entries := make([]Entry, 0, len(raw))
	for i, item := range raw {
		entry, err := decodeEntry(item)
		if err != nil {
			var derr *DecodingError
			if errors.As(err, &derr) {
				derr.Field = prefixField(i, derr.Field)
			}
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func decodeDocument(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, decodeError("", err)
	}
	if dec.More() {
		return nil, &DecodingError{Offset: dec.InputOffset(), Message: "unexpected data after top-level array"}
	}
	return doc, nil
}

func decodeEntry(item json.RawMessage) (Entry, error) {
	dec := json.NewDecoder(bytes.NewReader(item))
	dec.UseNumber()
	var fe fileEntry
	if err := dec.Decode(&fe); err != nil {
		return Entry{}, decodeError("", err)
	}

	method, err := ParseMethod(fe.Method)
	if err != nil {
		return Entry{}, &DecodingError{Field: "method", Offset: -1, Message: err.Error()}
	}

	var params Params
	if fe.Params != nil {
		norm, err := NormalizeValue(fe.Params)
		if err != nil {
			return Entry{}, &DecodingError{Field: "params", Offset: -1, Err: err}
		}
		params = norm.(map[string]any)
	}

	key, err := NewRequestKey(fe.URL, method, params)
	if err != nil {
		return Entry{}, &DecodingError{Field: "params", Offset: -1, Err: err}
	}

	resp := ResponseStub{
		StatusCode: fe.ResponseStub.StatusCode,
		Headers:    fe.ResponseStub.Headers,
		Error:      fe.ResponseStub.Error,
	}
	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	if fe.ResponseStub.Body != nil {
		resp.Body = []byte(*fe.ResponseStub.Body)
	}
	return Entry{Key: key, Response: resp}, nil
}

func decodeError(field string, err error) *DecodingError {
	derr := &DecodingError{Field: field, Offset: -1, Err: err}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		derr.Offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		derr.Offset = typeErr.Offset
		if typeErr.Field != "" {
			derr.Field = typeErr.Field
		}
		derr.Message = fmt.Sprintf("cannot use %s as %s", typeErr.Value, typeErr.Type)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		derr.Message = "unexpected end of input"
	}
	return derr
}

func prefixField(index int, field string) string {
	prefix := fmt.Sprintf("[%d]", index)
	if field == "" {
		return prefix
	}
	return prefix + "." + field
}

// yamlToJSON converts a YAML document into its JSON equivalent so both formats
// share one decoding path.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &DecodingError{Offset: -1, Message: err.Error(), Err: err}
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, &DecodingError{Offset: -1, Message: "YAML document has no JSON form", Err: err}
	}
	return out, nil
}

// Encode renders entries in the JSON definition file format.
func Encode(entries []Entry) ([]byte, error) {
	out := make([]fileEntry, len(entries))
	for i, e := range entries {
		fe := fileEntry{
			URL:    e.Key.URL,
			Method: string(e.Key.Method),
			Params: e.Key.Params,
			ResponseStub: fileResponse{
				StatusCode: e.Response.StatusCode,
				Headers:    e.Response.Headers,
				Error:      e.Response.Error,
			},
		}
		if e.Response.Body != nil {
			body := string(e.Response.Body)
			fe.ResponseStub.Body = &body
		}
		out[i] = fe
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stubs: %w", err)
	}
	return append(data, '\n'), nil
}

// EncodeAs renders entries in the given definition file format.
func EncodeAs(entries []Entry, format Format) ([]byte, error) {
	data, err := Encode(entries)
	if err != nil || format != FormatYAML {
		return data, err
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to convert stubs to YAML: %w", err)
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert stubs to YAML: %w", err)
	}
	return out, nil
}
