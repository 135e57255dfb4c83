// Package scoring holds the decode-time knobs that shape how hypotheses
// of the main and sub task are ranked, validates them, and builds the
// option set handed to the decoder.
package scoring

import (
	"errors"
	"fmt"

	"github.com/ieee0824/hiereval/decodelen"
	"github.com/ieee0824/hiereval/internal/mathutil"
)

// ErrConfig is returned for an inconsistent decode configuration.
var ErrConfig = errors.New("invalid decode configuration")

// Mode tags results so oracle measurements are never mixed with standard ones.
type Mode string

const (
	Standard Mode = "standard"
	Oracle   Mode = "oracle"
)

// TaskParams are the beam search parameters of one task.
type TaskParams struct {
	BeamWidth       int
	LengthPenalty   float64
	CoveragePenalty float64
	LMWeight        float64
}

// JointConfig is the full decode configuration of a run.
type JointConfig struct {
	Main TaskParams
	Sub  TaskParams

	// ResolvingUnk back-fills unknown words of the main hypothesis from
	// the aligned sub task hypothesis.
	ResolvingUnk bool
	// A2COracle guides character decoding with the reference. Diagnostic only.
	A2COracle bool
	// JointDecoding ranks main hypotheses by main + ScoreSubWeight*sub.
	JointDecoding  bool
	ScoreSubWeight float64

	// ScoreSubTask reports sub task WER/CER instead of main task WER.
	ScoreSubTask bool
}

// DefaultConfig returns greedy decoding without fusion.
func DefaultConfig() JointConfig {
	return JointConfig{
		Main: TaskParams{BeamWidth: 1},
		Sub:  TaskParams{BeamWidth: 1},
	}
}

// Mode returns Oracle when the a2c oracle takes part in decoding. Sub task
// scoring never uses the oracle.
func (c JointConfig) Mode() Mode {
	if c.A2COracle && !c.ScoreSubTask {
		return Oracle
	}
	return Standard
}

// SubParticipates reports whether main task decoding also runs the sub
// task decoder.
func (c JointConfig) SubParticipates() bool {
	return c.ResolvingUnk || c.JointDecoding || c.A2COracle
}

// Validate checks the configuration before anything is decoded.
// subDeclared tells whether the model has a sub task at all.
func (c JointConfig) Validate(subDeclared bool) error {
	if err := c.Main.validate("main"); err != nil {
		return err
	}
	needSub := c.ScoreSubTask || c.SubParticipates()
	if needSub || c.Sub.BeamWidth != 0 {
		if err := c.Sub.validate("sub"); err != nil {
			return err
		}
	}
	if !mathutil.Finite(c.ScoreSubWeight) || c.ScoreSubWeight < 0 {
		return fmt.Errorf("%w: score_sub_weight must be finite and >= 0, got %v", ErrConfig, c.ScoreSubWeight)
	}
	subActive := subDeclared && c.Sub.BeamWidth >= 1
	if !subActive {
		switch {
		case c.ResolvingUnk:
			return fmt.Errorf("%w: resolving_unk needs sub task decoding", ErrConfig)
		case c.JointDecoding:
			return fmt.Errorf("%w: joint_decoding needs sub task decoding", ErrConfig)
		case c.A2COracle:
			return fmt.Errorf("%w: a2c_oracle needs sub task decoding", ErrConfig)
		case c.ScoreSubTask:
			return fmt.Errorf("%w: score_sub_task needs a sub task", ErrConfig)
		}
	}
	return nil
}

func (p TaskParams) validate(task string) error {
	if p.BeamWidth < 1 {
		return fmt.Errorf("%w: %s beam width must be >= 1, got %d", ErrConfig, task, p.BeamWidth)
	}
	if !mathutil.Finite(p.LengthPenalty) {
		return fmt.Errorf("%w: %s length penalty is not finite", ErrConfig, task)
	}
	if !mathutil.Finite(p.CoveragePenalty) {
		return fmt.Errorf("%w: %s coverage penalty is not finite", ErrConfig, task)
	}
	if !mathutil.Finite(p.LMWeight) || p.LMWeight < 0 {
		return fmt.Errorf("%w: %s LM weight must be finite and >= 0, got %v", ErrConfig, task, p.LMWeight)
	}
	return nil
}

// Combine blends a main task score with the aligned sub task score.
func Combine(scoreMain, scoreSub, subWeight float64) float64 {
	if subWeight == 0 {
		return scoreMain
	}
	return scoreMain + subWeight*scoreSub
}

// Envelope is the length envelope of one output level.
type Envelope struct {
	Level decodelen.Level
	decodelen.Bounds
}

// LevelOptions are the decoder settings for one output level.
type LevelOptions struct {
	Envelope
	TaskParams
}

// LMWeights are the LM weights actually in effect after fusion resolution.
type LMWeights struct {
	Main float64
	Sub  float64
}

// Options is what the decoder receives for one subset.
type Options struct {
	Primary LevelOptions
	// Aux is the sub task when it takes part in main task decoding.
	Aux *LevelOptions

	ResolvingUnk   bool
	A2COracle      bool
	JointDecoding  bool
	ScoreSubWeight float64
	BatchSize      int
}

// Weight returns the sub task weight the decoder must apply.
func (o Options) Weight() float64 {
	if !o.JointDecoding {
		return 0
	}
	return o.ScoreSubWeight
}

// WordOptions builds options for main task (word) evaluation. sub may be
// nil when the sub task does not take part.
func (c JointConfig) WordOptions(main Envelope, sub *Envelope, lm LMWeights) Options {
	o := Options{
		Primary:        LevelOptions{Envelope: main, TaskParams: withLM(c.Main, lm.Main)},
		ResolvingUnk:   c.ResolvingUnk,
		A2COracle:      c.A2COracle,
		JointDecoding:  c.JointDecoding,
		ScoreSubWeight: c.ScoreSubWeight,
	}
	if sub != nil && c.SubParticipates() {
		o.Aux = &LevelOptions{Envelope: *sub, TaskParams: withLM(c.Sub, lm.Sub)}
	}
	return o
}

// CharOptions builds options for sub task evaluation. Joint decoding,
// unk resolution and oracle knobs belong to main task decoding and are
// dropped.
func (c JointConfig) CharOptions(sub Envelope, lm LMWeights) Options {
	return Options{Primary: LevelOptions{Envelope: sub, TaskParams: withLM(c.Sub, lm.Sub)}}
}

func withLM(p TaskParams, lmWeight float64) TaskParams {
	p.LMWeight = lmWeight
	return p
}
