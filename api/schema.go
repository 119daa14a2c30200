package api

import (
	"fmt"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

const reorderSchemaURL = "reorder.json"

const reorderSchemaSource = `{
	"type": "object",
	"required": ["ids"],
	"properties": {
		"ids": {"type": "array", "minItems": 1}
	}
}`

var reorderSchema = jsonschema.MustCompileString(reorderSchemaURL, reorderSchemaSource)

// validateReorderBody checks that a decoded body carries a non-empty ids array.
// The returned error names the first failing location.
func validateReorderBody(v any) error {
	err := reorderSchema.Validate(v)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err
	}
	leaf := firstLeaf(ve)
	return fmt.Errorf("%s: %s", leaf.InstanceLocation, leaf.Message)
}

func firstLeaf(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}
