package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseError reports a document that is not well-formed YAML. It is fatal:
// a malformed document cannot be partially validated.
type ParseError struct {
	Path string
	Err  error
}

// Error returns the error message.
func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("failed to parse config: %v", e.Err)
}

// Unwrap returns the underlying YAML error.
func (e *ParseError) Unwrap() error { return e.Err }

// Load reads and parses a configuration file. The returned config has
// defaults applied but is not yet validated; call Validate on it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return parse(data, path)
}

// Parse parses configuration data. Each call is independent: the loader
// keeps no state beyond the returned value, so Parse may be called from
// concurrent workers without synchronization.
func Parse(data []byte) (*Config, error) {
	return parse(data, "")
}

func parse(data []byte, path string) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	var cfg Config
	if err := doc.Decode(&cfg); err != nil {
		// yaml.TypeError carries one line-numbered message per mistyped
		// field; surface every one of them instead of just the first.
		if te, ok := err.(*yaml.TypeError); ok {
			errs := &ValidationErrors{}
			for _, msg := range te.Errors {
				errs.Add(KindSchema, "", msg)
			}
			return nil, errs
		}
		return nil, &ParseError{Path: path, Err: err}
	}

	cfg.doc = &doc
	applyDefaults(&cfg)
	return &cfg, nil
}

// Defaults for omitted optional fields. Required fields are left at their
// zero values for Validate to reject with a precise field path.
const (
	defaultTemperature    = 1.0
	defaultBeta1          = 0.9
	defaultBeta2          = 0.999
	defaultNumPatch       = 1
	defaultMaskRatio      = 0.05
	defaultMaskMaxLength  = 10
	defaultMaskNoiseScale = 1.0
	defaultChiRatio       = 0.1
)

func applyDefaults(cfg *Config) {
	if cfg.Data.Transform == nil {
		// An absent transform list means no augmentation.
		cfg.Data.Transform = []TransformSpec{}
	}
	if cfg.Model.Temperature == nil {
		t := defaultTemperature
		cfg.Model.Temperature = &t
	}
	if cfg.Model.Type == ModelEGNN {
		if cfg.Model.Encoder.UpdateCoorsMean == nil {
			on := true
			cfg.Model.Encoder.UpdateCoorsMean = &on
		}
		if cfg.Model.Encoder.UpdateCoorsVar == nil {
			on := true
			cfg.Model.Encoder.UpdateCoorsVar = &on
		}
	}

	if cfg.Train.Optimizer.Beta1 == nil {
		b := defaultBeta1
		cfg.Train.Optimizer.Beta1 = &b
	}
	if cfg.Train.Optimizer.Beta2 == nil {
		b := defaultBeta2
		cfg.Train.Optimizer.Beta2 = &b
	}

	// Pointer fields distinguish an omitted parameter from an explicit
	// zero: only omitted ones are defaulted, explicit values reach the
	// validator as written.
	for i := range cfg.Data.Transform {
		tr := &cfg.Data.Transform[i]
		switch tr.Type {
		case TransformRandomMaskMultiPatch:
			if tr.NumPatch == nil {
				n := defaultNumPatch
				tr.NumPatch = &n
			}
			if tr.MaskRatio == nil {
				r := defaultMaskRatio
				tr.MaskRatio = &r
			}
			if tr.MaskMaxLength == nil {
				n := defaultMaskMaxLength
				tr.MaskMaxLength = &n
			}
			if tr.MaskNoiseScale == nil {
				s := defaultMaskNoiseScale
				tr.MaskNoiseScale = &s
			}
		case TransformCorruptChiAngle:
			if tr.Ratio == nil {
				r := defaultChiRatio
				tr.Ratio = &r
			}
		}
	}
}

// ConfigName derives the run name from a config file path: the base name
// without its extension. The external trainer uses it to prefix log
// directories, so tooling reports it alongside the loaded config.
func ConfigName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// DocumentJSON converts raw YAML document bytes to their JSON rendering.
// Used to run user-supplied JSON-Schema checks against the document as
// written, before defaults are applied.
func DocumentJSON(data []byte) (string, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", &ParseError{Err: err}
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to render document as JSON: %w", err)
	}
	return string(out), nil
}
