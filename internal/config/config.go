package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ieee0824/hiereval/checkpoint"
	"github.com/ieee0824/hiereval/evaluation"
	"github.com/ieee0824/hiereval/scoring"
)

// EvalConfig holds the command line configuration of an evaluation run.
type EvalConfig struct {
	Corpus       string
	EvalSets     string
	DataSavePath string
	ModelPath    string
	Epoch        int
	BatchSize    int

	BeamWidth       int
	LengthPenalty   float64
	CoveragePenalty float64
	RNNLMWeight     float64
	RNNLMPath       string

	BeamWidthSub       int
	LengthPenaltySub   float64
	CoveragePenaltySub float64
	RNNLMWeightSub     float64
	RNNLMPathSub       string

	ResolvingUnk   Bool
	A2COracle      Bool
	JointDecoding  Bool
	ScoreSubTask   Bool
	ScoreSubWeight float64

	LogLevel    string
	ResultsDB   string
	MetricsFile string
}

// BindFlags populates the struct with defaults from environment variables
// and binds flags on fs so main can call fs.Parse.
func (c *EvalConfig) BindFlags(fs *flag.FlagSet) {
	c.LogLevel = getEnv("LOG_LEVEL", "info")
	c.ResultsDB = getEnv("RESULTS_DB", "")
	c.MetricsFile = getEnv("METRICS_FILE", "")

	fs.StringVar(&c.Corpus, "corpus", c.Corpus, "corpus name (csj, swbd, librispeech, wsj, timit)")
	fs.StringVar(&c.EvalSets, "eval-sets", c.EvalSets, "comma separated evaluation subsets")
	fs.StringVar(&c.DataSavePath, "data-save-path", c.DataSavePath, "directory holding subset manifests and vocabularies")
	fs.StringVar(&c.ModelPath, "model-path", c.ModelPath, "directory of the trained model")
	fs.IntVar(&c.Epoch, "epoch", checkpoint.Latest, "epoch to restore; -1 selects the latest")
	fs.IntVar(&c.BatchSize, "eval-batch-size", 1, "evaluation batch size")

	fs.IntVar(&c.BeamWidth, "beam-width", 1, "beam width of the main task")
	fs.Float64Var(&c.LengthPenalty, "length-penalty", 0, "length penalty of the main task")
	fs.Float64Var(&c.CoveragePenalty, "coverage-penalty", 0, "coverage penalty of the main task")
	fs.Float64Var(&c.RNNLMWeight, "rnnlm-weight", 0, "shallow fusion LM weight of the main task")
	fs.StringVar(&c.RNNLMPath, "rnnlm-path", "", "shallow fusion LM directory of the main task")

	fs.IntVar(&c.BeamWidthSub, "beam-width-sub", 1, "beam width of the sub task")
	fs.Float64Var(&c.LengthPenaltySub, "length-penalty-sub", 0, "length penalty of the sub task")
	fs.Float64Var(&c.CoveragePenaltySub, "coverage-penalty-sub", 0, "coverage penalty of the sub task")
	fs.Float64Var(&c.RNNLMWeightSub, "rnnlm-weight-sub", 0, "shallow fusion LM weight of the sub task")
	fs.StringVar(&c.RNNLMPathSub, "rnnlm-path-sub", "", "shallow fusion LM directory of the sub task")

	fs.Var(&c.ResolvingUnk, "resolving-unk", "replace unknown words using the sub task output")
	fs.Var(&c.A2COracle, "a2c-oracle", "use the sub task reference in place of its hypothesis")
	fs.Var(&c.JointDecoding, "joint-decoding", "rescore main task candidates with the sub task")
	fs.Var(&c.ScoreSubTask, "score-sub-task", "score the sub task instead of the main task")
	fs.Float64Var(&c.ScoreSubWeight, "score-sub-weight", 0, "sub task weight in joint decoding")

	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&c.ResultsDB, "results-db", c.ResultsDB, "SQLite file to record results in; empty disables")
	fs.StringVar(&c.MetricsFile, "metrics-file", c.MetricsFile, "Prometheus textfile to write; empty disables")
}

// Validate checks the fields flags cannot.
func (c *EvalConfig) Validate() error {
	var errs []error
	if c.Corpus == "" {
		errs = append(errs, errors.New("-corpus is required"))
	}
	if len(c.Sets()) == 0 {
		errs = append(errs, errors.New("-eval-sets is required"))
	}
	if c.ModelPath == "" {
		errs = append(errs, errors.New("-model-path is required"))
	}
	if c.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("-eval-batch-size must be >= 1, got %d", c.BatchSize))
	}
	return errors.Join(errs...)
}

// Sets splits EvalSets on commas, dropping empty entries.
func (c *EvalConfig) Sets() []string {
	var out []string
	for _, s := range strings.Split(c.EvalSets, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// JointConfig returns the decoding knobs.
func (c *EvalConfig) JointConfig() scoring.JointConfig {
	return scoring.JointConfig{
		Main: scoring.TaskParams{
			BeamWidth:       c.BeamWidth,
			LengthPenalty:   c.LengthPenalty,
			CoveragePenalty: c.CoveragePenalty,
			LMWeight:        c.RNNLMWeight,
		},
		Sub: scoring.TaskParams{
			BeamWidth:       c.BeamWidthSub,
			LengthPenalty:   c.LengthPenaltySub,
			CoveragePenalty: c.CoveragePenaltySub,
			LMWeight:        c.RNNLMWeightSub,
		},
		ResolvingUnk:   bool(c.ResolvingUnk),
		A2COracle:      bool(c.A2COracle),
		JointDecoding:  bool(c.JointDecoding),
		ScoreSubWeight: c.ScoreSubWeight,
		ScoreSubTask:   bool(c.ScoreSubTask),
	}
}

// Params returns the run parameters.
func (c *EvalConfig) Params() evaluation.Params {
	return evaluation.Params{
		Corpus:       c.Corpus,
		EvalSets:     c.Sets(),
		DataSavePath: c.DataSavePath,
		ModelPath:    c.ModelPath,
		Epoch:        c.Epoch,
		BatchSize:    c.BatchSize,
		Decode:       c.JointConfig(),
		RNNLMPath:    c.RNNLMPath,
		RNNLMPathSub: c.RNNLMPathSub,
	}
}

// Bool is a flag that takes a value: y, yes, t, true, on, 1 or n, no, f,
// false, off, 0 in any case.
type Bool bool

// ParseBool converts a truthy or falsy token.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "t", "true", "on", "1":
		return true, nil
	case "n", "no", "f", "false", "off", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid truth value %q", s)
}

func (b *Bool) String() string {
	if b != nil && *b {
		return "true"
	}
	return "false"
}

func (b *Bool) Set(s string) error {
	v, err := ParseBool(s)
	if err != nil {
		return err
	}
	*b = Bool(v)
	return nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
