package config

import (
	"fmt"
	"strings"
	"testing"
)

// mustParse parses a document that is expected to be well-formed.
func mustParse(t *testing.T, doc string) *Config {
	t.Helper()
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return cfg
}

// findingFor returns the first finding whose field matches.
func findingFor(errs *ValidationErrors, field string) *ValidationError {
	for _, e := range errs.Errors {
		if e.Field == field {
			return e
		}
	}
	return nil
}

func TestValidate_ValidDocument(t *testing.T) {
	cfg := mustParse(t, validDoc)
	if err := cfg.Validate(Options{}); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidate_Idempotent(t *testing.T) {
	cfg := mustParse(t, validDoc)
	first := cfg.Check(Options{})
	second := cfg.Check(Options{})
	if len(first.Errors) != len(second.Errors) {
		t.Fatalf("Check() not idempotent: %d findings then %d", len(first.Errors), len(second.Errors))
	}
	for i := range first.Errors {
		if *first.Errors[i] != *second.Errors[i] {
			t.Errorf("finding %d changed between runs: %v vs %v", i, first.Errors[i], second.Errors[i])
		}
	}
}

func TestValidate_FieldPaths(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(doc string) string
		field   string
		message string
	}{
		{
			name:   "unknown model type",
			mutate: func(d string) string { return strings.Replace(d, "type: egnn", "type: transformer", 1) },
			field:  "model.type", message: "transformer",
		},
		{
			name:   "unknown resolution",
			mutate: func(d string) string { return strings.Replace(d, "resolution: backbone+CB\n  use_plm", "resolution: sidechain\n  use_plm", 1) },
			field:  "model.resolution", message: "sidechain",
		},
		{
			name:   "missing lr",
			mutate: func(d string) string { return strings.Replace(d, "    lr: 3.0e-4\n", "", 1) },
			field:  "train.optimizer.lr", message: "greater than 0",
		},
		{
			name:   "unknown optimizer",
			mutate: func(d string) string { return strings.Replace(d, "type: adam", "type: sgd", 1) },
			field:  "train.optimizer.type", message: "sgd",
		},
		{
			name:   "unknown scheduler",
			mutate: func(d string) string { return strings.Replace(d, "type: plateau", "type: cosine", 1) },
			field:  "train.scheduler.type", message: "cosine",
		},
		{
			name:   "factor out of range",
			mutate: func(d string) string { return strings.Replace(d, "factor: 0.8", "factor: 1.5", 1) },
			field:  "train.scheduler.factor", message: "(0, 1]",
		},
		{
			name:   "zero encoder dim",
			mutate: func(d string) string { return strings.Replace(d, "num_layers: 6", "num_layers: 0", 1) },
			field:  "model.encoder.num_layers", message: "positive",
		},
		{
			name:   "missing seed",
			mutate: func(d string) string { return strings.Replace(d, "  seed: 2023\n", "", 1) },
			field:  "train.seed", message: "positive",
		},
		{
			name:   "negative weight decay",
			mutate: func(d string) string { return strings.Replace(d, "weight_decay: 0.0", "weight_decay: -0.1", 1) },
			field:  "train.optimizer.weight_decay", message: "negative",
		},
		{
			name:   "missing cache_dir",
			mutate: func(d string) string { return strings.Replace(d, "  cache_dir: ./cache\n", "", 1) },
			field:  "data.cache_dir", message: "required",
		},
		{
			name:   "unknown transform type",
			mutate: func(d string) string { return strings.Replace(d, "type: select_atom", "type: jitter", 1) },
			field:  "data.transform[0].type", message: "jitter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := mustParse(t, tt.mutate(validDoc))
			errs := cfg.Check(Options{})
			e := findingFor(errs, tt.field)
			if e == nil {
				t.Fatalf("no finding for field %q, got: %v", tt.field, errs)
			}
			if e.Severity != SeverityError {
				t.Errorf("finding severity = %v, want error", e.Severity)
			}
			if !strings.Contains(e.Message, tt.message) {
				t.Errorf("message = %q, want it to contain %q", e.Message, tt.message)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	doc := strings.Replace(validDoc, "type: egnn", "type: transformer", 1)
	doc = strings.Replace(doc, "type: adam", "type: sgd", 1)
	doc = strings.Replace(doc, "factor: 0.8", "factor: 2.0", 1)

	cfg := mustParse(t, doc)
	errs := cfg.Check(Options{})

	for _, field := range []string{"model.type", "train.optimizer.type", "train.scheduler.factor"} {
		if findingFor(errs, field) == nil {
			t.Errorf("expected a finding for %q in the same pass, got: %v", field, errs)
		}
	}
}

func TestValidate_PatchLimit(t *testing.T) {
	doc := strings.Replace(validDoc, "num_patch: 2", "num_patch: 3", 1)
	cfg := mustParse(t, doc)

	errs := cfg.Check(Options{})
	e := findingFor(errs, "data.transform[1].num_patch")
	if e == nil {
		t.Fatalf("no finding for num_patch, got: %v", errs)
	}
	if e.Kind != KindCrossField {
		t.Errorf("Kind = %v, want %v", e.Kind, KindCrossField)
	}
	if !strings.Contains(e.Message, "at most 2") {
		t.Errorf("message = %q, want the two-patch limit cited", e.Message)
	}
}

func TestValidate_ExplicitZeroTransformParams(t *testing.T) {
	// A written zero is out of range for these parameters and must be
	// rejected, not silently replaced by the omitted-value default.
	tests := []struct {
		name   string
		inject string
		field  string
	}{
		{
			name:   "num_patch zero",
			inject: "      num_patch: 0\n",
			field:  "data.transform[1].num_patch",
		},
		{
			name:   "mask_ratio zero",
			inject: "      mask_ratio: 0\n",
			field:  "data.transform[1].mask_ratio",
		},
		{
			name:   "mask_max_length zero",
			inject: "      mask_max_length: 0\n",
			field:  "data.transform[1].mask_max_length",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := strings.Replace(validDoc, "      num_patch: 2\n", tt.inject, 1)
			cfg := mustParse(t, doc)
			errs := cfg.Check(Options{})
			e := findingFor(errs, tt.field)
			if e == nil {
				t.Fatalf("no finding for %q, got: %v", tt.field, errs)
			}
			if e.Severity != SeverityError {
				t.Errorf("severity = %v, want error", e.Severity)
			}
		})
	}

	t.Run("chi ratio zero", func(t *testing.T) {
		doc := strings.Replace(validDoc, "      num_patch: 2\n",
			"      num_patch: 2\n    - type: corrupt_chi_angle\n      ratio: 0\n", 1)
		cfg := mustParse(t, doc)
		errs := cfg.Check(Options{})
		e := findingFor(errs, "data.transform[2].ratio")
		if e == nil || e.Severity != SeverityError {
			t.Fatalf("explicit ratio: 0 must be a schema error, got: %v", errs)
		}
	})
}

func TestValidate_RequiredTransformParams(t *testing.T) {
	doc := strings.Replace(validDoc, "      focus_attr: core_flag\n", "", 1)
	cfg := mustParse(t, doc)

	errs := cfg.Check(Options{})
	if findingFor(errs, "data.transform[1].focus_attr") == nil {
		t.Errorf("expected a finding for missing focus_attr, got: %v", errs)
	}
}

func TestValidate_LossWeights(t *testing.T) {
	t.Run("negative weight", func(t *testing.T) {
		doc := strings.Replace(validDoc, "pos: 0.5", "pos: -0.5", 1)
		cfg := mustParse(t, doc)
		errs := cfg.Check(Options{})
		e := findingFor(errs, "train.loss_weights.pos")
		if e == nil || e.Severity != SeverityError {
			t.Fatalf("expected an error for negative weight, got: %v", errs)
		}
	})

	t.Run("unknown term warns", func(t *testing.T) {
		doc := strings.Replace(validDoc, "pos: 0.5", "wobble: 0.5", 1)
		cfg := mustParse(t, doc)
		errs := cfg.Check(Options{})
		e := findingFor(errs, "train.loss_weights.wobble")
		if e == nil {
			t.Fatalf("expected a finding for unknown loss term, got: %v", errs)
		}
		if e.Severity != SeverityWarning {
			t.Errorf("severity = %v, want warning", e.Severity)
		}
		if errs.HasErrors() {
			t.Error("unknown loss term alone should not fail validation")
		}
	})

	t.Run("empty mapping", func(t *testing.T) {
		cfg := mustParse(t, strings.Replace(validDoc,
			"loss_weights:\n    rotamer: 1.0\n    pos: 0.5", "loss_weights: {}", 1))
		errs := cfg.Check(Options{})
		if findingFor(errs, "train.loss_weights") == nil {
			t.Errorf("expected a finding for empty loss_weights, got: %v", errs)
		}
	})
}

func TestValidate_UnknownKeys(t *testing.T) {
	doc := strings.Replace(validDoc, "use_plm: true", "use_plm: true\n  dropout: 0.1", 1)

	t.Run("strict by default", func(t *testing.T) {
		cfg := mustParse(t, doc)
		errs := cfg.Check(Options{})
		e := findingFor(errs, "model.dropout")
		if e == nil {
			t.Fatalf("no finding for model.dropout, got: %v", errs)
		}
		if e.Severity != SeverityError {
			t.Errorf("severity = %v, want error", e.Severity)
		}
	})

	t.Run("lenient downgrades to warning", func(t *testing.T) {
		cfg := mustParse(t, doc)
		errs := cfg.Check(Options{Lenient: true})
		e := findingFor(errs, "model.dropout")
		if e == nil {
			t.Fatalf("no finding for model.dropout, got: %v", errs)
		}
		if e.Severity != SeverityWarning {
			t.Errorf("severity = %v, want warning", e.Severity)
		}
		if errs.HasErrors() {
			t.Error("lenient mode should not fail on unknown keys")
		}
	})
}

func TestValidate_DatasetPathFields(t *testing.T) {
	// Arbitrary scalar string keys under data are dataset paths, not
	// unknown keys.
	cfg := mustParse(t, validDoc)
	errs := cfg.Check(Options{})
	if findingFor(errs, "data.pdbredo_dir") != nil {
		t.Errorf("dataset path field flagged as unknown: %v", errs)
	}

	// Non-string values are rejected.
	doc := strings.Replace(validDoc, "pdbredo_dir: ./data/pdb_redo", "pdbredo_dir: [a, b]", 1)
	if _, err := Parse([]byte(doc)); err == nil {
		t.Error("Parse() should reject a non-string dataset path field")
	}
}

func TestValidate_EncoderVariantKeys(t *testing.T) {
	doc := strings.Replace(validDoc, "type: egnn", "type: equiformer", 1)
	cfg := mustParse(t, doc)
	errs := cfg.Check(Options{})

	// norm_coors is an egnn knob; on equiformer it is ignored, so the
	// finding is a warning rather than an error.
	e := findingFor(errs, "model.encoder.norm_coors")
	if e == nil {
		t.Fatalf("no finding for model.encoder.norm_coors, got: %v", errs)
	}
	if e.Severity != SeverityWarning {
		t.Errorf("severity = %v, want warning", e.Severity)
	}
	if errs.HasErrors() {
		t.Error("cross-architecture encoder extras should not fail validation by default")
	}
}

func TestValidate_ResolutionMismatch(t *testing.T) {
	doc := strings.Replace(validDoc, "      resolution: backbone+CB", "      resolution: CA", 1)

	t.Run("warning by default", func(t *testing.T) {
		cfg := mustParse(t, doc)
		errs := cfg.Check(Options{})
		e := findingFor(errs, "data.transform[0].resolution")
		if e == nil {
			t.Fatalf("no finding for the resolution mismatch, got: %v", errs)
		}
		if e.Kind != KindCrossField || e.Severity != SeverityWarning {
			t.Errorf("got kind=%v severity=%v, want cross-field warning", e.Kind, e.Severity)
		}
		if errs.HasErrors() {
			t.Error("mismatch should not fail validation by default")
		}
	})

	t.Run("strict promotes to error", func(t *testing.T) {
		cfg := mustParse(t, doc)
		errs := cfg.Check(Options{Strict: true})
		e := findingFor(errs, "data.transform[0].resolution")
		if e == nil || e.Severity != SeverityError {
			t.Fatalf("strict mode should promote the mismatch to an error, got: %v", errs)
		}
		if !errs.HasErrors() {
			t.Error("strict mode should fail validation on the mismatch")
		}
	})
}

func TestValidate_MissingSection(t *testing.T) {
	doc := "model:\n  type: egnn\n  resolution: CA\n  encoder:\n    node_feat_dim: 1\n    pair_feat_dim: 1\n    num_layers: 1\n    num_nearest_neighbors: 1\n"
	cfg := mustParse(t, doc)
	errs := cfg.Check(Options{})

	for _, section := range []string{"data", "train"} {
		e := findingFor(errs, section)
		if e == nil {
			t.Errorf("no finding for missing section %q, got: %v", section, errs)
		}
	}
}

func TestValidate_SchedulerFloor(t *testing.T) {
	doc := strings.Replace(validDoc, "min_lr: 1.0e-6", "min_lr: 1.0e-3", 1)
	cfg := mustParse(t, doc)
	errs := cfg.Check(Options{})
	e := findingFor(errs, "train.scheduler.min_lr")
	if e == nil || e.Severity != SeverityWarning {
		t.Fatalf("expected a warning for min_lr >= lr, got: %v", errs)
	}
}

func TestValidationErrors_Warnings(t *testing.T) {
	errs := &ValidationErrors{}
	errs.Add(KindSchema, "model.type", "model type is required")
	errs.AddWarning(KindCrossField, "train.val_freq", "exceeds max_iters")
	errs.AddWarning(KindSchema, "model.dropout", "unrecognized key")

	warnings := errs.Warnings()
	if len(warnings) != 2 {
		t.Fatalf("Warnings() returned %d findings, want 2", len(warnings))
	}
	for _, w := range warnings {
		if w.Severity != SeverityWarning {
			t.Errorf("Warnings() returned a %v finding: %v", w.Severity, w)
		}
	}
}

func TestValidationErrors_Rendering(t *testing.T) {
	errs := &ValidationErrors{}
	errs.Add(KindSchema, "model.type", "unknown model type: foo")
	if !strings.Contains(errs.Error(), "model.type") {
		t.Errorf("single error rendering = %q, want the field path", errs.Error())
	}

	errs.Add(KindCrossField, "train.val_freq", "exceeds max_iters")
	out := errs.Error()
	if !strings.HasPrefix(out, fmt.Sprintf("%d validation errors:", 2)) {
		t.Errorf("multi-error rendering = %q, want a counted header", out)
	}
	if !strings.Contains(out, "1. ") || !strings.Contains(out, "2. ") {
		t.Errorf("multi-error rendering = %q, want numbered lines", out)
	}
}
