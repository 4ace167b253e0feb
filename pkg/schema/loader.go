package schema

import (
	_ "embed"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed trials.schema.json
var trialsSchema []byte

// Validate checks doc against the schema file at schemaPath.
func Validate(schemaPath string, doc any) ([]string, error) {
	return validate(gojsonschema.NewReferenceLoader("file://"+schemaPath), gojsonschema.NewGoLoader(doc), schemaPath)
}

// ValidateTrials checks a raw trial file against the built-in schema.
func ValidateTrials(raw []byte) ([]string, error) {
	return validate(gojsonschema.NewBytesLoader(trialsSchema), gojsonschema.NewBytesLoader(raw), "trials schema")
}

func validate(schemaLoader, docLoader gojsonschema.JSONLoader, name string) ([]string, error) {
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", name, err)
	}
	if result.Valid() {
		return nil, nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, e.String())
	}
	return errs, nil
}
