package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

func decodeYAML(data []byte) (*Environment, error) {
	var env Environment
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&env); err != nil {
		if errors.Is(err, io.EOF) {
			return &env, nil
		}
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	return &env, nil
}

func decodeTOML(data []byte) (*Environment, error) {
	var env Environment
	md, err := toml.Decode(string(data), &env)
	if err != nil {
		return nil, fmt.Errorf("parse TOML: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("parse TOML: unknown fields: %s", strings.Join(keys, ", "))
	}
	return &env, nil
}

// decodeCUE unifies the file with #Environment, so CUE reports schema
// violations with file positions before Go ever sees the values.
func decodeCUE(path string, data []byte) (*Environment, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("parse CUE: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Environment")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate CUE: %w", err)
	}

	var env Environment
	if err := unified.Decode(&env); err != nil {
		return nil, fmt.Errorf("decode CUE: %w", err)
	}
	return &env, nil
}
