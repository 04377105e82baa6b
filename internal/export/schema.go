package export

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nibzard/taskledger/internal/utils"
)

//go:embed schema/ledger.schema.json
var schemaJSON []byte

const schemaURL = "https://github.com/nibzard/taskledger/ledger.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// Schema returns the bundled JSON Schema text.
func Schema() []byte {
	return append([]byte(nil), schemaJSON...)
}

func compiled() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = true
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("load schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// SchemaError is one schema violation at a document path.
type SchemaError struct {
	Path string
	Err  error
}

func (e *SchemaError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *SchemaError) Unwrap() error {
	return e.Err
}

// Validate checks a document against the bundled schema and returns every
// violation found.
func Validate(doc *Document) []error {
	schema, err := compiled()
	if err != nil {
		return []error{err}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return []error{&SchemaError{Err: fmt.Errorf("marshal document: %w", err)}}
	}
	var obj any
	if err := json.Unmarshal(data, &obj); err != nil {
		return []error{&SchemaError{Err: fmt.Errorf("unmarshal document: %w", err)}}
	}

	if err := schema.Validate(obj); err != nil {
		var errs []error
		ve, ok := err.(*jsonschema.ValidationError)
		if !ok {
			return []error{err}
		}
		collectSchemaErrors(&errs, ve)
		return errs
	}
	return nil
}

func collectSchemaErrors(errs *[]error, err *jsonschema.ValidationError) {
	if err == nil {
		return
	}
	if len(err.Causes) == 0 {
		*errs = append(*errs, &SchemaError{
			Path: utils.JSONPointerToPath(err.InstanceLocation),
			Err:  fmt.Errorf("%s", err.Message),
		})
		return
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(errs, cause)
	}
}
