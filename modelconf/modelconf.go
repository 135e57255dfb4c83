// Package modelconf reads the hyperparameter files persisted next to a
// trained model or language model.
package modelconf

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned when a configuration misses required fields.
var ErrInvalid = errors.New("invalid model config")

// Input modalities.
const (
	InputSpeech = "speech"
	InputText   = "text"
)

// Config is the subset of a model's hyperparameters evaluation relies on.
type Config struct {
	ModelType string `yaml:"model_type"`
	Backend   string `yaml:"backend"`
	InputType string `yaml:"input_type"`

	LabelType    string `yaml:"label_type"`
	LabelTypeSub string `yaml:"label_type_sub"`
	LabelTypeIn  string `yaml:"label_type_in"`

	Vocab    string `yaml:"vocab"`
	DataSize string `yaml:"data_size"`
	Tool     string `yaml:"tool"`

	InputFreq      int  `yaml:"input_freq"`
	UseDelta       bool `yaml:"use_delta"`
	UseDoubleDelta bool `yaml:"use_double_delta"`

	SubsampleList       Subsampling `yaml:"subsample_list"`
	EncoderNumLayersSub int         `yaml:"encoder_num_layers_sub"`
	CTCLossWeightSub    float64     `yaml:"ctc_loss_weight_sub"`

	// Cold fusion: set when an LM was trained jointly with the model.
	RNNLMFusionType string `yaml:"rnnlm_fusion_type"`
	RNNLMPath       string `yaml:"rnnlm_path"`
	RNNLMPathSub    string `yaml:"rnnlm_path_sub"`

	// Filled in at evaluation time from the dataset.
	NumClasses      int `yaml:"num_classes,omitempty"`
	NumClassesSub   int `yaml:"num_classes_sub,omitempty"`
	NumClassesInput int `yaml:"num_classes_input,omitempty"`
}

// wrapped matches files that nest hyperparameters under "param".
type wrapped struct {
	Param *Config `yaml:"param"`
}

// Load reads a YAML config file. Hyperparameters may be at the top level
// or nested under a "param" key. With isEval set the fields needed to
// rebuild a model for decoding are required.
func Load(path string, isEval bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if isEval {
		if err := cfg.validateEval(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return cfg, nil
}

// Parse decodes YAML bytes into a Config.
func Parse(b []byte) (*Config, error) {
	var w wrapped
	if err := yaml.Unmarshal(b, &w); err != nil {
		return nil, err
	}
	if w.Param != nil {
		return w.Param, nil
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validateEval() error {
	if c.ModelType == "" {
		return fmt.Errorf("%w: model_type is empty", ErrInvalid)
	}
	if c.LabelType == "" {
		return fmt.Errorf("%w: label_type is empty", ErrInvalid)
	}
	switch c.InputType {
	case "", InputSpeech, InputText:
	default:
		return fmt.Errorf("%w: input_type %q", ErrInvalid, c.InputType)
	}
	return nil
}

// Modality returns the input modality, defaulting to speech.
func (c *Config) Modality() string {
	if c.InputType == "" {
		return InputSpeech
	}
	return c.InputType
}

// ColdFusion reports whether the main (sub=false) or sub task was trained
// with an LM fused into the checkpoint, and the path that LM came from.
func (c *Config) ColdFusion(sub bool) (string, bool) {
	path := c.RNNLMPath
	if sub {
		path = c.RNNLMPathSub
	}
	if c.RNNLMFusionType == "" || path == "" {
		return "", false
	}
	return path, true
}

// SubsamplingFactor is the total time reduction of the encoder.
func (c *Config) SubsamplingFactor() int {
	return 1 << c.SubsampleList.sum()
}

// SubsamplingFactorSub is the time reduction at the layer feeding the sub
// task decoder.
func (c *Config) SubsamplingFactorSub() int {
	n := c.EncoderNumLayersSub - 1
	if n < 0 {
		n = 0
	}
	if n > len(c.SubsampleList) {
		n = len(c.SubsampleList)
	}
	return 1 << c.SubsampleList[:n].sum()
}

// UsesCTC reports whether the main task is decoded with CTC.
func (c *Config) UsesCTC() bool {
	return c.ModelType == "hierarchical_ctc"
}

// UsesCTCSub reports whether the sub task has a CTC branch.
func (c *Config) UsesCTCSub() bool {
	return c.UsesCTC() || (c.ModelType == "hierarchical_attention" && c.CTCLossWeightSub > 0)
}

// Subsampling lists, per encoder layer, how many times time is halved.
// Entries are written as booleans or integers.
type Subsampling []int

// UnmarshalYAML accepts a sequence of booleans or integers.
func (s *Subsampling) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: subsample_list must be a sequence", value.Line)
	}
	out := make(Subsampling, 0, len(value.Content))
	for _, n := range value.Content {
		var b bool
		if err := n.Decode(&b); err == nil {
			out = append(out, boolInt(b))
			continue
		}
		var i int
		if err := n.Decode(&i); err != nil {
			return fmt.Errorf("line %d: subsample_list entry %q is neither bool nor int", n.Line, n.Value)
		}
		if i < 0 {
			return fmt.Errorf("line %d: subsample_list entry %d is negative", n.Line, i)
		}
		out = append(out, i)
	}
	*s = out
	return nil
}

func (s Subsampling) sum() int {
	n := 0
	for _, v := range s {
		n += v
	}
	return n
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
