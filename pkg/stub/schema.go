package stub

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "stubfile.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	errSchema      error
)

// fileSchema returns the compiled definition file schema.
func fileSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			errSchema = fmt.Errorf("failed to add schema resource: %w", err)
			return
		}
		compiledSchema, errSchema = compiler.Compile(schemaURL)
	})
	return compiledSchema, errSchema
}

// validateDocument checks a decoded document against the file schema and
// converts the first failure into a DecodingError.
func validateDocument(doc any) error {
	schema, err := fileSchema()
	if err != nil {
		return err
	}
	err = schema.Validate(doc)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return &DecodingError{Offset: -1, Err: err}
	}
	leaf := deepestCause(verr)
	return &DecodingError{
		Field:   pointerToField(leaf.InstanceLocation),
		Offset:  -1,
		Message: leaf.Message,
		Err:     err,
	}
}

func deepestCause(err *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(err.Causes) > 0 {
		err = err.Causes[0]
	}
	return err
}

// pointerToField converts a JSON pointer such as "/1/responseStub/statusCode"
// into "[1].responseStub.statusCode".
func pointerToField(ptr string) string {
	if ptr == "" || ptr == "/" {
		return ""
	}
	var b strings.Builder
	for _, tok := range strings.Split(strings.TrimPrefix(ptr, "/"), "/") {
		tok = strings.ReplaceAll(strings.ReplaceAll(tok, "~1", "/"), "~0", "~")
		if isIndex(tok) {
			b.WriteString("[" + tok + "]")
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(tok)
	}
	return b.String()
}

func isIndex(tok string) bool {
	if tok == "" {
		return false
	}
	for _, r := range tok {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
