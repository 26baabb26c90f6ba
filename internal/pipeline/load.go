package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// LoadFile reads a definition from a .yaml, .yml or .cue file.
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline %s: %w", path, err)
	}

	var def *Definition
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		def, err = ParseYAML(data)
	case ".cue":
		def, err = ParseCUE(path, data)
	default:
		return nil, fmt.Errorf("pipeline %s: unsupported extension %q", path, ext)
	}
	if err != nil {
		var fe *Error
		if !errors.As(err, &fe) {
			return nil, fmt.Errorf("pipeline %s: %w", path, err)
		}
		if fe.File == "" {
			fe.File = path
		}
		return nil, err
	}
	return def, nil
}

// ParseYAML decodes a YAML definition. Unknown fields are errors.
func ParseYAML(data []byte) (*Definition, error) {
	var def Definition
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fieldErr("yaml", "empty document")
		}
		return nil, fieldErr("yaml", "%v", err)
	}
	return &def, nil
}

// ParseCUE compiles and decodes a CUE definition. The value must be
// concrete; constraints and defaults are resolved first.
func ParseCUE(filename string, data []byte) (*Definition, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}
	var def Definition
	if err := v.Decode(&def); err != nil {
		return nil, formatCUEError(err)
	}
	return &def, nil
}
