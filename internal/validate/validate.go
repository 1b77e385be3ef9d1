// Package validate checks emitted project models against the embedded CUE
// contract before they are written. A model that fails is a bug in an
// upstream stage, so callers treat validation errors as fatal.
package validate

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource []byte

// Validator validates model JSON against the #Model definition.
type Validator struct {
	ctx   *cue.Context
	model cue.Value
}

// New compiles the embedded schema.
func New() (*Validator, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaSource)
	if schema.Err() != nil {
		return nil, fmt.Errorf("compiling schema: %w", schema.Err())
	}
	def := schema.LookupPath(cue.ParsePath("#Model"))
	if def.Err() != nil {
		return nil, fmt.Errorf("looking up #Model definition: %w", def.Err())
	}

	return &Validator{ctx: ctx, model: def}, nil
}

// Validate marshals data to JSON and checks it.
func (v *Validator) Validate(data any) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling data to JSON: %w", err)
	}
	return v.ValidateJSON(jsonBytes)
}

// ValidateJSON checks JSON bytes directly.
func (v *Validator) ValidateJSON(jsonBytes []byte) error {
	dataValue := v.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return fmt.Errorf("compiling JSON as CUE: %w", dataValue.Err())
	}

	unified := v.model.Unify(dataValue)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema validation failed: %s", errors.Details(err, nil))
	}
	return nil
}
