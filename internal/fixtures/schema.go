package fixtures

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
)

//go:embed schema.cue
var schemaSource string

// Validate checks a YAML seed document against the #Seed definition.
// Definitions are closed, so unknown fields are errors too.
func Validate(data []byte) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("fixtures: compile schema: %w", err)
	}

	file, err := cueyaml.Extract("seed.yaml", data)
	if err != nil {
		return fmt.Errorf("fixtures: parse yaml: %w", err)
	}
	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("fixtures: build: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Seed")).Unify(doc)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("fixtures: invalid seed: %s", cueerrors.Details(err, nil))
	}
	return nil
}
