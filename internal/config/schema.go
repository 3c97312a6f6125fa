// Package config provides loading and validation of training-run
// configuration documents for rotamer-density and binding-affinity models.
package config

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"gopkg.in/yaml.v3"
)

// Config is the root of a training-run configuration document.
//
// Example YAML:
//
//	model:
//	  type: egnn
//	  resolution: backbone+CB
//	  encoder:
//	    node_feat_dim: 128
//	    pair_feat_dim: 64
//	    num_layers: 6
//	    num_nearest_neighbors: 16
//	data:
//	  cache_dir: ./cache
//	  pdbredo_dir: ./data/pdb_redo
//	  transform:
//	    - type: select_atom
//	      resolution: backbone+CB
//	train:
//	  loss_weights: { rotamer: 1.0 }
//	  max_iters: 200000
//	  val_freq: 5000
//	  batch_size: 32
//	  seed: 2023
//	  max_grad_norm: 100.0
//	  optimizer: { type: adam, lr: 1e-4, weight_decay: 0.0 }
//	  scheduler: { type: plateau, factor: 0.8, patience: 10 }
type Config struct {
	// Model selects the architecture and its encoder hyperparameters
	Model ModelConfig `json:"model" yaml:"model"`

	// Data declares dataset locations and the augmentation pipeline
	Data DataConfig `json:"data" yaml:"data"`

	// Train holds optimization, scheduling and loss settings
	Train TrainConfig `json:"train" yaml:"train"`

	// doc is the raw document this config was parsed from; used for the
	// unknown-key scan. Nil for configs built programmatically.
	doc *yaml.Node
}

// Recognized model architectures.
const (
	ModelEquiformer = "equiformer"
	ModelEGNN       = "egnn"
	ModelGA         = "ga"
)

// Recognized atom-resolution modes. Resolution controls which atom subset
// of each residue is visible to the model.
const (
	ResolutionFull       = "full"
	ResolutionBackboneCB = "backbone+CB"
	ResolutionCA         = "CA"
)

// ModelConfig selects an architecture and its hyperparameters.
type ModelConfig struct {
	// Type is the architecture tag: "equiformer", "egnn" or "ga"
	Type string `json:"type" yaml:"type"`

	// Checkpoint optionally points at pre-trained weights to restore
	Checkpoint CheckpointConfig `json:"checkpoint,omitempty" yaml:"checkpoint,omitempty"`

	// Encoder holds the encoder hyperparameters
	Encoder EncoderConfig `json:"encoder" yaml:"encoder"`

	// Resolution is the visible atom subset: "full", "backbone+CB" or "CA"
	Resolution string `json:"resolution" yaml:"resolution"`

	// UsePLM enables protein-language-model embeddings as input features
	UsePLM bool `json:"use_plm,omitempty" yaml:"use_plm,omitempty"`

	// Target toggles auxiliary prediction targets by name
	Target map[string]bool `json:"target,omitempty" yaml:"target,omitempty"`

	// Temperature scales the output density; defaults to 1.0
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
}

// CheckpointConfig points at pre-trained weights. An empty path means the
// model is trained from scratch.
type CheckpointConfig struct {
	Path CheckpointPath `json:"path,omitempty" yaml:"path,omitempty"`
}

// CheckpointPath is a string path that also accepts the YAML scalars false
// and null, both meaning "no checkpoint". Some historical configs write
// `path: False` instead of omitting the key.
type CheckpointPath string

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *CheckpointPath) UnmarshalYAML(value *yaml.Node) error {
	switch value.Tag {
	case "!!str":
		*p = CheckpointPath(value.Value)
		return nil
	case "!!null":
		*p = ""
		return nil
	case "!!bool":
		var b bool
		if err := value.Decode(&b); err != nil {
			return err
		}
		if b {
			return fmt.Errorf("checkpoint path must be a string or false, got true")
		}
		*p = ""
		return nil
	default:
		return fmt.Errorf("checkpoint path must be a string or false, got %s", value.Tag)
	}
}

// MarshalYAML implements yaml.Marshaler.
func (p CheckpointPath) MarshalYAML() (interface{}, error) {
	if p == "" {
		return false, nil
	}
	return string(p), nil
}

// MarshalJSON implements json.Marshaler.
func (p CheckpointPath) MarshalJSON() ([]byte, error) {
	if p == "" {
		return []byte("false"), nil
	}
	return json.Marshal(string(p))
}

// String returns the path, or an empty string when no checkpoint is set.
func (p CheckpointPath) String() string { return string(p) }

// EncoderConfig holds encoder hyperparameters. The dimension fields are
// required for every architecture; the remaining fields only apply to the
// architecture named in the field comment and are flagged by validation
// when set for another one.
type EncoderConfig struct {
	// NodeFeatDim is the per-residue feature dimension
	NodeFeatDim int `json:"node_feat_dim" yaml:"node_feat_dim"`

	// PairFeatDim is the pairwise feature dimension
	PairFeatDim int `json:"pair_feat_dim" yaml:"pair_feat_dim"`

	// NumLayers is the encoder depth
	NumLayers int `json:"num_layers" yaml:"num_layers"`

	// NumNearestNeighbors bounds the neighborhood graph degree
	NumNearestNeighbors int `json:"num_nearest_neighbors" yaml:"num_nearest_neighbors"`

	// NormCoors normalizes coordinate updates (egnn)
	NormCoors bool `json:"norm_coors,omitempty" yaml:"norm_coors,omitempty"`

	// UpdateCoorsMean updates the coordinate mean (egnn)
	UpdateCoorsMean *bool `json:"update_coors_mean,omitempty" yaml:"update_coors_mean,omitempty"`

	// UpdateCoorsVar updates the coordinate variance (egnn)
	UpdateCoorsVar *bool `json:"update_coors_var,omitempty" yaml:"update_coors_var,omitempty"`

	// LearnableVar makes the variance a learned parameter (egnn)
	LearnableVar bool `json:"learnable_var,omitempty" yaml:"learnable_var,omitempty"`

	// Heads is the attention head count (equiformer, ga)
	Heads int `json:"heads,omitempty" yaml:"heads,omitempty"`

	// DimHead is the per-head dimension (equiformer, ga)
	DimHead int `json:"dim_head,omitempty" yaml:"dim_head,omitempty"`
}

// DataConfig declares dataset locations and the transform pipeline.
//
// Dataset-specific path fields (pdbredo_dir, clusters_path, ...) vary by
// dataset family, so every key other than the fixed ones is collected into
// Paths verbatim. Path existence is the data provider's concern, not the
// loader's.
type DataConfig struct {
	// Type is an optional dataset-family tag
	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	// CacheDir is where the data provider stores processed samples
	CacheDir string `json:"cache_dir" yaml:"cache_dir"`

	// Reset discards the processed cache before training
	Reset bool `json:"reset,omitempty" yaml:"reset,omitempty"`

	// Transform is the ordered augmentation pipeline; empty means none
	Transform []TransformSpec `json:"transform" yaml:"transform"`

	// Paths holds the dataset-specific path fields
	Paths map[string]string `json:"-" yaml:",inline"`
}

// MarshalJSON flattens Paths back into the data mapping.
func (d DataConfig) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(d.Paths)+4)
	for k, v := range d.Paths {
		out[k] = v
	}
	if d.Type != "" {
		out["type"] = d.Type
	}
	out["cache_dir"] = d.CacheDir
	out["reset"] = d.Reset
	if d.Transform == nil {
		out["transform"] = []TransformSpec{}
	} else {
		out["transform"] = d.Transform
	}
	return json.Marshal(out)
}

// Recognized transform types.
const (
	TransformSelectAtom           = "select_atom"
	TransformRandomMaskMultiPatch = "random_mask_pos_and_multiple_patch"
	TransformSelectedRegionPatch  = "selected_region_fixed_size_patch"
	TransformAddZeroVariance      = "add_zero_variance"
	TransformCorruptChiAngle      = "corrupt_chi_angle"
)

// TransformSpec is one step of the augmentation pipeline. Which parameter
// fields apply depends on Type; validation enforces each type's required
// parameter set.
type TransformSpec struct {
	// Type is the transform tag
	Type string `json:"type" yaml:"type"`

	// Resolution is the visible atom subset (select_atom)
	Resolution string `json:"resolution,omitempty" yaml:"resolution,omitempty"`

	// FocusAttr names the per-residue flag that seeds patch centers
	// (random_mask_pos_and_multiple_patch)
	FocusAttr string `json:"focus_attr,omitempty" yaml:"focus_attr,omitempty"`

	// SeedNbhSize is the neighborhood size around a patch seed
	// (random_mask_pos_and_multiple_patch)
	SeedNbhSize int `json:"seed_nbh_size,omitempty" yaml:"seed_nbh_size,omitempty"`

	// PatchSize is the residue count per extracted patch
	// (random_mask_pos_and_multiple_patch, selected_region_fixed_size_patch)
	PatchSize int `json:"patch_size,omitempty" yaml:"patch_size,omitempty"`

	// NumPatch is the number of patches to extract, at most 2; defaults
	// to 1 when omitted (random_mask_pos_and_multiple_patch)
	NumPatch *int `json:"num_patch,omitempty" yaml:"num_patch,omitempty"`

	// MaskRatio is the fraction of residues whose positions are masked;
	// defaults to 0.05 when omitted (random_mask_pos_and_multiple_patch)
	MaskRatio *float64 `json:"mask_ratio,omitempty" yaml:"mask_ratio,omitempty"`

	// MaskMaxLength caps the masked segment length; defaults to 10 when
	// omitted (random_mask_pos_and_multiple_patch)
	MaskMaxLength *int `json:"mask_max_length,omitempty" yaml:"mask_max_length,omitempty"`

	// MaskNoiseScale scales the positional noise added to masked
	// residues; defaults to 1.0 when omitted, and an explicit 0 disables
	// the noise (random_mask_pos_and_multiple_patch)
	MaskNoiseScale *float64 `json:"mask_noise_scale,omitempty" yaml:"mask_noise_scale,omitempty"`

	// SelectAttr names the per-residue flag that selects the region
	// (selected_region_fixed_size_patch)
	SelectAttr string `json:"select_attr,omitempty" yaml:"select_attr,omitempty"`

	// Ratio is the fraction of side chains whose chi angles are
	// corrupted; defaults to 0.1 when omitted (corrupt_chi_angle)
	Ratio *float64 `json:"ratio,omitempty" yaml:"ratio,omitempty"`

	// MaskableFlagAttr restricts corruption to flagged residues
	// (corrupt_chi_angle)
	MaskableFlagAttr string `json:"maskable_flag_attr,omitempty" yaml:"maskable_flag_attr,omitempty"`
}

// TrainConfig holds optimization, scheduling and loss settings.
type TrainConfig struct {
	// LossWeights maps loss-term names to non-negative weights; the total
	// loss is the weighted sum of the terms the model emits
	LossWeights map[string]float64 `json:"loss_weights" yaml:"loss_weights"`

	// MaxIters is the total number of training iterations
	MaxIters int `json:"max_iters" yaml:"max_iters"`

	// ValFreq is the validation (and checkpointing) cadence in iterations
	ValFreq int `json:"val_freq" yaml:"val_freq"`

	// BatchSize is the per-step sample count
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// Seed initializes all random state for the run
	Seed int `json:"seed" yaml:"seed"`

	// MaxGradNorm is the gradient clipping threshold
	MaxGradNorm float64 `json:"max_grad_norm" yaml:"max_grad_norm"`

	// Optimizer configures the optimizer
	Optimizer OptimizerConfig `json:"optimizer" yaml:"optimizer"`

	// Scheduler configures the learning-rate scheduler
	Scheduler SchedulerConfig `json:"scheduler" yaml:"scheduler"`
}

// NewRand returns a deterministic generator seeded from train.seed.
// The loader never touches process-global random state; callers decide
// when and where to seed.
func (t *TrainConfig) NewRand() *rand.Rand {
	return rand.New(rand.NewSource(int64(t.Seed)))
}

// OptimizerConfig configures the optimizer. Only adam is recognized.
type OptimizerConfig struct {
	Type string `json:"type" yaml:"type"`

	// LR is the initial learning rate
	LR float64 `json:"lr" yaml:"lr"`

	// WeightDecay is the L2 penalty coefficient
	WeightDecay float64 `json:"weight_decay" yaml:"weight_decay"`

	// Beta1 and Beta2 are the adam moment decay rates, each in [0, 1);
	// they default to 0.9 and 0.999 when omitted
	Beta1 *float64 `json:"beta1,omitempty" yaml:"beta1,omitempty"`
	Beta2 *float64 `json:"beta2,omitempty" yaml:"beta2,omitempty"`
}

// SchedulerConfig configures the learning-rate scheduler. Only plateau
// (reduce-on-plateau, stepped on validation loss) is recognized.
type SchedulerConfig struct {
	Type string `json:"type" yaml:"type"`

	// Factor multiplies the learning rate on plateau, in (0, 1]
	Factor float64 `json:"factor" yaml:"factor"`

	// Patience is the number of flat validations before a reduction
	Patience int `json:"patience" yaml:"patience"`

	// MinLR is the learning-rate floor; defaults to 0 (no floor)
	MinLR float64 `json:"min_lr" yaml:"min_lr"`
}
