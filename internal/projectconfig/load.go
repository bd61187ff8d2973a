package projectconfig

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Load reads a YAML or JSON config file and validates it against the
// config schema. The returned snapshot can be passed to ApplyExternal.
func Load(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates config bytes.
func Parse(data []byte) (map[string]any, error) {
	var snapshot map[string]any
	if err := yaml.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if snapshot == nil {
		snapshot = make(map[string]any)
	}
	if err := Validate(snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Validate checks a decoded snapshot against the embedded CUE schema.
// Validate must see the values as decoded from YAML, before normalization,
// so integers are still integers.
func Validate(snapshot map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := ctx.Encode(snapshot)
	if err := v.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
