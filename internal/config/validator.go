package config

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind classifies a validation error per the loader's error taxonomy.
type Kind string

const (
	// KindSchema covers missing, extra, mistyped and invalid-enum fields.
	KindSchema Kind = "schema"
	// KindCrossField covers semantically inconsistent field combinations.
	KindCrossField Kind = "cross-field"
)

// Severity distinguishes hard errors from advisory findings.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationError represents a single configuration problem, located by a
// dotted field path.
type ValidationError struct {
	Kind     Kind
	Severity Severity
	Field    string
	Message  string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s error on field '%s': %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

// ValidationErrors is a collection of validation findings. All checks run
// in one pass so a single invocation reports every problem at once.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add appends an error-severity finding.
func (e *ValidationErrors) Add(kind Kind, field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Kind: kind, Severity: SeverityError, Field: field, Message: message})
}

// AddWarning appends a warning-severity finding.
func (e *ValidationErrors) AddWarning(kind Kind, field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Kind: kind, Severity: SeverityWarning, Field: field, Message: message})
}

// HasErrors returns true if any finding has error severity.
func (e *ValidationErrors) HasErrors() bool {
	for _, err := range e.Errors {
		if err.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Warnings returns the warning-severity findings.
func (e *ValidationErrors) Warnings() []*ValidationError {
	var out []*ValidationError
	for _, err := range e.Errors {
		if err.Severity == SeverityWarning {
			out = append(out, err)
		}
	}
	return out
}

// Options controls validation strictness.
type Options struct {
	// Lenient downgrades unrecognized keys from errors to warnings.
	Lenient bool

	// Strict promotes every warning to an error, including the
	// model/transform resolution mismatch.
	Strict bool
}

// Validate runs all structural and cross-field checks and returns nil if
// the config is valid, or a *ValidationErrors with every error found.
// Warning-only findings do not fail validation unless Options.Strict is set.
func (c *Config) Validate(opts Options) error {
	errs := c.Check(opts)
	if errs.HasErrors() {
		return errs
	}
	return nil
}

// Check runs all checks and returns the full finding list, warnings
// included. Validation is pure: checking the same config twice yields
// identical results.
func (c *Config) Check(opts Options) *ValidationErrors {
	errs := &ValidationErrors{}

	if c.doc != nil {
		checkDocumentKeys(c.doc, c.Model.Type, opts, errs)
	}

	validateModel(&c.Model, errs)
	validateData(&c.Data, errs)
	validateTrain(&c.Train, errs)
	validateResolutionAgreement(c, errs)

	if opts.Strict {
		for _, err := range errs.Errors {
			err.Severity = SeverityError
		}
	}
	return errs
}

var modelTypes = map[string]bool{
	ModelEquiformer: true,
	ModelEGNN:       true,
	ModelGA:         true,
}

var resolutions = map[string]bool{
	ResolutionFull:       true,
	ResolutionBackboneCB: true,
	ResolutionCA:         true,
}

func validateModel(m *ModelConfig, errs *ValidationErrors) {
	if m.Type == "" {
		errs.Add(KindSchema, "model.type", "model type is required")
	} else if !modelTypes[m.Type] {
		errs.Add(KindSchema, "model.type", fmt.Sprintf("unknown model type: %s", m.Type))
	}

	if m.Resolution == "" {
		errs.Add(KindSchema, "model.resolution", "resolution is required")
	} else if !resolutions[m.Resolution] {
		errs.Add(KindSchema, "model.resolution", fmt.Sprintf("unknown resolution: %s", m.Resolution))
	}

	if m.Temperature != nil && *m.Temperature <= 0 {
		errs.Add(KindSchema, "model.temperature", "temperature must be greater than 0")
	}

	validateEncoder(&m.Encoder, errs)
}

func validateEncoder(enc *EncoderConfig, errs *ValidationErrors) {
	dims := []struct {
		field string
		value int
	}{
		{"model.encoder.node_feat_dim", enc.NodeFeatDim},
		{"model.encoder.pair_feat_dim", enc.PairFeatDim},
		{"model.encoder.num_layers", enc.NumLayers},
		{"model.encoder.num_nearest_neighbors", enc.NumNearestNeighbors},
	}
	for _, d := range dims {
		if d.value <= 0 {
			errs.Add(KindSchema, d.field, "must be a positive integer")
		}
	}

	if enc.Heads < 0 {
		errs.Add(KindSchema, "model.encoder.heads", "cannot be negative")
	}
	if enc.DimHead < 0 {
		errs.Add(KindSchema, "model.encoder.dim_head", "cannot be negative")
	}
}

var transformTypes = map[string]bool{
	TransformSelectAtom:           true,
	TransformRandomMaskMultiPatch: true,
	TransformSelectedRegionPatch:  true,
	TransformAddZeroVariance:      true,
	TransformCorruptChiAngle:      true,
}

// maxPatches bounds random_mask_pos_and_multiple_patch: extracting more
// than two patches per sample exceeds the pipeline's memory budget.
const maxPatches = 2

func validateData(d *DataConfig, errs *ValidationErrors) {
	if d.CacheDir == "" {
		errs.Add(KindSchema, "data.cache_dir", "cache_dir is required")
	}

	for i := range d.Transform {
		validateTransform(fmt.Sprintf("data.transform[%d]", i), &d.Transform[i], errs)
	}
}

func validateTransform(prefix string, tr *TransformSpec, errs *ValidationErrors) {
	if tr.Type == "" {
		errs.Add(KindSchema, prefix+".type", "transform type is required")
		return
	}
	if !transformTypes[tr.Type] {
		errs.Add(KindSchema, prefix+".type", fmt.Sprintf("unknown transform type: %s", tr.Type))
		return
	}

	switch tr.Type {
	case TransformSelectAtom:
		if tr.Resolution == "" {
			errs.Add(KindSchema, prefix+".resolution", "resolution is required for select_atom")
		} else if !resolutions[tr.Resolution] {
			errs.Add(KindSchema, prefix+".resolution", fmt.Sprintf("unknown resolution: %s", tr.Resolution))
		}

	case TransformRandomMaskMultiPatch:
		if tr.FocusAttr == "" {
			errs.Add(KindSchema, prefix+".focus_attr", "focus_attr is required")
		}
		if tr.SeedNbhSize <= 0 {
			errs.Add(KindSchema, prefix+".seed_nbh_size", "must be a positive integer")
		}
		if tr.PatchSize <= 0 {
			errs.Add(KindSchema, prefix+".patch_size", "must be a positive integer")
		}
		// Nil pointers mean the parameter was omitted; the loader fills
		// its default, which is in range. Explicit values are checked as
		// written.
		if tr.NumPatch != nil {
			if *tr.NumPatch < 1 {
				errs.Add(KindSchema, prefix+".num_patch", "must be at least 1")
			} else if *tr.NumPatch > maxPatches {
				errs.Add(KindCrossField, prefix+".num_patch",
					fmt.Sprintf("the patch pipeline supports at most %d patches, got %d", maxPatches, *tr.NumPatch))
			}
		}
		if tr.MaskRatio != nil && (*tr.MaskRatio <= 0 || *tr.MaskRatio > 1) {
			errs.Add(KindSchema, prefix+".mask_ratio", "must be in (0, 1]")
		}
		if tr.MaskMaxLength != nil && *tr.MaskMaxLength <= 0 {
			errs.Add(KindSchema, prefix+".mask_max_length", "must be a positive integer")
		}
		if tr.MaskNoiseScale != nil && *tr.MaskNoiseScale < 0 {
			errs.Add(KindSchema, prefix+".mask_noise_scale", "cannot be negative")
		}

	case TransformSelectedRegionPatch:
		if tr.SelectAttr == "" {
			errs.Add(KindSchema, prefix+".select_attr", "select_attr is required")
		}
		if tr.PatchSize <= 0 {
			errs.Add(KindSchema, prefix+".patch_size", "must be a positive integer")
		}

	case TransformCorruptChiAngle:
		if tr.Ratio != nil && (*tr.Ratio <= 0 || *tr.Ratio > 1) {
			errs.Add(KindSchema, prefix+".ratio", "must be in (0, 1]")
		}
	}
}

// knownLossTerms is the vocabulary of weighted loss terms emitted by the
// recognized model targets.
var knownLossTerms = map[string]bool{
	"rotamer":    true,
	"pos":        true,
	"chi_angle":  true,
	"seq":        true,
	"regression": true,
}

func validateTrain(t *TrainConfig, errs *ValidationErrors) {
	if len(t.LossWeights) == 0 {
		errs.Add(KindSchema, "train.loss_weights", "at least one loss weight is required")
	}
	names := make([]string, 0, len(t.LossWeights))
	for name := range t.LossWeights {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w := t.LossWeights[name]
		field := "train.loss_weights." + name
		if math.IsNaN(w) || math.IsInf(w, 0) {
			errs.Add(KindSchema, field, "must be a finite number")
		} else if w < 0 {
			errs.Add(KindSchema, field, "cannot be negative")
		}
		if !knownLossTerms[name] {
			errs.AddWarning(KindCrossField, field,
				fmt.Sprintf("unrecognized loss term: %s (no model target produces it)", name))
		}
	}

	counters := []struct {
		field string
		value int
	}{
		{"train.max_iters", t.MaxIters},
		{"train.val_freq", t.ValFreq},
		{"train.batch_size", t.BatchSize},
		{"train.seed", t.Seed},
	}
	for _, c := range counters {
		if c.value <= 0 {
			errs.Add(KindSchema, c.field, "must be a positive integer")
		}
	}

	if t.MaxGradNorm <= 0 {
		errs.Add(KindSchema, "train.max_grad_norm", "must be greater than 0")
	}

	if t.ValFreq > 0 && t.MaxIters > 0 && t.ValFreq > t.MaxIters {
		errs.AddWarning(KindCrossField, "train.val_freq",
			fmt.Sprintf("val_freq (%d) exceeds max_iters (%d); validation would never run", t.ValFreq, t.MaxIters))
	}

	validateOptimizer(&t.Optimizer, errs)
	validateScheduler(&t.Scheduler, t.Optimizer.LR, errs)
}

func validateOptimizer(o *OptimizerConfig, errs *ValidationErrors) {
	if o.Type == "" {
		errs.Add(KindSchema, "train.optimizer.type", "optimizer type is required")
	} else if o.Type != "adam" {
		errs.Add(KindSchema, "train.optimizer.type", fmt.Sprintf("unknown optimizer type: %s", o.Type))
	}

	if o.LR <= 0 {
		errs.Add(KindSchema, "train.optimizer.lr", "lr must be greater than 0")
	}
	if o.WeightDecay < 0 {
		errs.Add(KindSchema, "train.optimizer.weight_decay", "cannot be negative")
	}
	if o.Beta1 != nil && (*o.Beta1 < 0 || *o.Beta1 >= 1) {
		errs.Add(KindSchema, "train.optimizer.beta1", "must be in [0, 1)")
	}
	if o.Beta2 != nil && (*o.Beta2 < 0 || *o.Beta2 >= 1) {
		errs.Add(KindSchema, "train.optimizer.beta2", "must be in [0, 1)")
	}
}

func validateScheduler(s *SchedulerConfig, lr float64, errs *ValidationErrors) {
	if s.Type == "" {
		errs.Add(KindSchema, "train.scheduler.type", "scheduler type is required")
	} else if s.Type != "plateau" {
		errs.Add(KindSchema, "train.scheduler.type", fmt.Sprintf("unknown scheduler type: %s", s.Type))
	}

	if s.Factor <= 0 || s.Factor > 1 {
		errs.Add(KindSchema, "train.scheduler.factor", "must be in (0, 1]")
	}
	if s.Patience < 0 {
		errs.Add(KindSchema, "train.scheduler.patience", "cannot be negative")
	}
	if s.MinLR < 0 {
		errs.Add(KindSchema, "train.scheduler.min_lr", "cannot be negative")
	}
	if lr > 0 && s.MinLR >= lr {
		errs.AddWarning(KindCrossField, "train.scheduler.min_lr",
			fmt.Sprintf("min_lr (%g) is not below the initial lr (%g); the scheduler can never reduce", s.MinLR, lr))
	}
}

// validateResolutionAgreement flags a select_atom transform whose visible
// atom set differs from the model's. Several historical configs diverge
// here on purpose, so the mismatch is a warning unless Options.Strict.
func validateResolutionAgreement(c *Config, errs *ValidationErrors) {
	if c.Model.Resolution == "" || !resolutions[c.Model.Resolution] {
		return
	}
	for i := range c.Data.Transform {
		tr := &c.Data.Transform[i]
		if tr.Type != TransformSelectAtom || !resolutions[tr.Resolution] {
			continue
		}
		if tr.Resolution != c.Model.Resolution {
			errs.AddWarning(KindCrossField, fmt.Sprintf("data.transform[%d].resolution", i),
				fmt.Sprintf("select_atom resolution (%s) differs from model.resolution (%s)", tr.Resolution, c.Model.Resolution))
		}
	}
}

// Allowed keys per document section. The data section is absent: its
// fixed keys are handled inline and everything else is a dataset path.
var sectionKeys = map[string]map[string]bool{
	"": {"model": true, "data": true, "train": true},
	"model": {
		"type": true, "checkpoint": true, "encoder": true, "resolution": true,
		"use_plm": true, "target": true, "temperature": true,
	},
	"model.checkpoint": {"path": true},
	"train": {
		"loss_weights": true, "max_iters": true, "val_freq": true, "batch_size": true,
		"seed": true, "max_grad_norm": true, "optimizer": true, "scheduler": true,
	},
	"train.optimizer": {"type": true, "lr": true, "weight_decay": true, "beta1": true, "beta2": true},
	"train.scheduler": {"type": true, "factor": true, "patience": true, "min_lr": true},
}

// Encoder keys shared by every architecture, plus the per-architecture
// extras. An extra set for the wrong architecture is ignored by the model
// factory, so it is flagged as a warning rather than rejected.
var (
	encoderCommonKeys = map[string]bool{
		"node_feat_dim": true, "pair_feat_dim": true,
		"num_layers": true, "num_nearest_neighbors": true,
	}
	encoderEGNNKeys = map[string]bool{
		"norm_coors": true, "update_coors_mean": true,
		"update_coors_var": true, "learnable_var": true,
	}
	encoderAttnKeys = map[string]bool{"heads": true, "dim_head": true}
)

var transformParamKeys = map[string]map[string]bool{
	TransformSelectAtom: {"resolution": true},
	TransformRandomMaskMultiPatch: {
		"focus_attr": true, "seed_nbh_size": true, "patch_size": true, "num_patch": true,
		"mask_ratio": true, "mask_max_length": true, "mask_noise_scale": true,
	},
	TransformSelectedRegionPatch: {"select_attr": true, "patch_size": true},
	TransformAddZeroVariance:     {},
	TransformCorruptChiAngle:     {"ratio": true, "maskable_flag_attr": true},
}

// checkDocumentKeys walks the raw document and reports missing sections
// and unrecognized keys with their dotted paths. Struct decoding alone
// cannot do this: it silently drops keys it has no field for.
func checkDocumentKeys(doc *yaml.Node, modelType string, opts Options, errs *ValidationErrors) {
	root := doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			errs.Add(KindSchema, "", "document is empty")
			return
		}
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		errs.Add(KindSchema, "", "top level must be a mapping with keys model, data and train")
		return
	}

	for _, section := range []string{"model", "data", "train"} {
		if mappingValue(root, section) == nil {
			errs.Add(KindSchema, section, "section is required")
		}
	}

	checkMappingKeys(root, "", opts, errs)

	if model := mappingValue(root, "model"); model != nil && model.Kind == yaml.MappingNode {
		checkMappingKeys(model, "model", opts, errs)
		if ckpt := mappingValue(model, "checkpoint"); ckpt != nil && ckpt.Kind == yaml.MappingNode {
			checkMappingKeys(ckpt, "model.checkpoint", opts, errs)
		}
		if enc := mappingValue(model, "encoder"); enc != nil && enc.Kind == yaml.MappingNode {
			checkEncoderKeys(enc, modelType, opts, errs)
		}
	}

	if data := mappingValue(root, "data"); data != nil && data.Kind == yaml.MappingNode {
		checkDataKeys(data, opts, errs)
	}

	if train := mappingValue(root, "train"); train != nil && train.Kind == yaml.MappingNode {
		checkMappingKeys(train, "train", opts, errs)
		if opt := mappingValue(train, "optimizer"); opt != nil && opt.Kind == yaml.MappingNode {
			checkMappingKeys(opt, "train.optimizer", opts, errs)
		}
		if sched := mappingValue(train, "scheduler"); sched != nil && sched.Kind == yaml.MappingNode {
			checkMappingKeys(sched, "train.scheduler", opts, errs)
		}
	}
}

func checkMappingKeys(node *yaml.Node, prefix string, opts Options, errs *ValidationErrors) {
	allowed := sectionKeys[prefix]
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if !allowed[key] {
			addUnknownKey(joinPath(prefix, key), opts, errs)
		}
	}
}

func checkEncoderKeys(node *yaml.Node, modelType string, opts Options, errs *ValidationErrors) {
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		path := "model.encoder." + key
		switch {
		case encoderCommonKeys[key]:
		case encoderEGNNKeys[key]:
			if modelType != ModelEGNN && modelTypes[modelType] {
				errs.AddWarning(KindSchema, path,
					fmt.Sprintf("only meaningful for egnn, ignored by %s", modelType))
			}
		case encoderAttnKeys[key]:
			if modelType == ModelEGNN {
				errs.AddWarning(KindSchema, path, "only meaningful for equiformer and ga, ignored by egnn")
			}
		default:
			addUnknownKey(path, opts, errs)
		}
	}
}

func checkDataKeys(node *yaml.Node, opts Options, errs *ValidationErrors) {
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		value := node.Content[i+1]
		switch key {
		case "type", "cache_dir", "reset":
		case "transform":
			if value.Kind == yaml.SequenceNode {
				checkTransformKeys(value, opts, errs)
			}
		default:
			// Everything else is a dataset-specific path field, recorded
			// verbatim; existence is checked by the data provider.
			if value.Kind != yaml.ScalarNode || value.Tag != "!!str" {
				errs.Add(KindSchema, "data."+key, "dataset path fields must be strings")
			}
		}
	}
}

func checkTransformKeys(seq *yaml.Node, opts Options, errs *ValidationErrors) {
	for i, elem := range seq.Content {
		if elem.Kind != yaml.MappingNode {
			errs.Add(KindSchema, fmt.Sprintf("data.transform[%d]", i), "each transform must be a mapping")
			continue
		}
		typeNode := mappingValue(elem, "type")
		if typeNode == nil {
			// Missing type is reported by validateTransform.
			continue
		}
		params, known := transformParamKeys[typeNode.Value]
		if !known {
			// Unknown type is reported by validateTransform.
			continue
		}
		for j := 0; j+1 < len(elem.Content); j += 2 {
			key := elem.Content[j].Value
			if key == "type" || params[key] {
				continue
			}
			addUnknownKey(fmt.Sprintf("data.transform[%d].%s", i, key), opts, errs)
		}
	}
}

func addUnknownKey(path string, opts Options, errs *ValidationErrors) {
	if opts.Lenient {
		errs.AddWarning(KindSchema, path, "unrecognized key")
		return
	}
	errs.Add(KindSchema, path, "unrecognized key (use lenient mode to ignore)")
}

// mappingValue returns the value node for key in a mapping node, or nil.
func mappingValue(node *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
