// Package fusion decides how a language model is combined with each task
// of a hierarchical model and loads what that decision requires.
//
// Cold fusion means the LM was trained jointly with the acoustic model and
// its parameters already live in the model checkpoint; only its config is
// read. Shallow fusion means a separately trained LM is loaded and its
// score is interpolated at decode time.
package fusion

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ieee0824/hiereval/modelconf"
	"github.com/rs/zerolog"
)

// ErrLabelMismatch is returned when an LM was trained on a different label
// set than the task it is fused with.
var ErrLabelMismatch = errors.New("language model label mismatch")

// Mode is the way an LM participates in decoding.
type Mode int

const (
	None Mode = iota
	Cold
	Shallow
)

func (m Mode) String() string {
	switch m {
	case Cold:
		return "cold"
	case Shallow:
		return "shallow"
	}
	return "none"
}

// Task selects the main (word) or sub (character/phone) task.
type Task int

const (
	Main Task = iota
	Sub
)

func (t Task) String() string {
	if t == Sub {
		return "sub"
	}
	return "main"
}

// ColdConfigName is the LM config persisted next to a cold-fused model.
func (t Task) ColdConfigName() string {
	if t == Sub {
		return "config_rnnlm_sub.yml"
	}
	return "config_rnnlm.yml"
}

// Request carries what the decision depends on for one task.
type Request struct {
	Task Task
	// From the model's persisted config.
	ColdFusionType string
	ColdLMPath     string
	// From the command line.
	RuntimeLMPath   string
	RuntimeLMWeight float64
}

// Decision is the outcome of Decide. Path is empty for None.
type Decision struct {
	Mode   Mode
	Path   string
	Weight float64
	// IgnoredPath is a runtime LM path that was supplied but not used.
	IgnoredPath string
}

// Decide picks the fusion mode for a task. It does no I/O.
// A cold-fused model always wins over a runtime LM; a runtime LM needs a
// positive weight.
func Decide(r Request) Decision {
	if r.ColdFusionType != "" && r.ColdLMPath != "" {
		return Decision{
			Mode:        Cold,
			Path:        r.ColdLMPath,
			Weight:      r.RuntimeLMWeight,
			IgnoredPath: r.RuntimeLMPath,
		}
	}
	if r.RuntimeLMPath != "" && r.RuntimeLMWeight > 0 {
		return Decision{Mode: Shallow, Path: r.RuntimeLMPath, Weight: r.RuntimeLMWeight}
	}
	return Decision{Mode: None, IgnoredPath: r.RuntimeLMPath}
}

// LanguageModel scores label sequences for shallow fusion.
type LanguageModel interface {
	SentenceLogProb(tokens []string) float64
}

// Loader reads LM configs and parameters.
type Loader interface {
	LoadConfig(path string, isEval bool) (*modelconf.Config, error)
	LoadLM(cfg *modelconf.Config, dir string) (LanguageModel, error)
}

// Target describes the task an LM is fused into.
type Target struct {
	Task       Task
	ModelDir   string
	LabelType  string
	NumClasses int
}

// Config is the resolved fusion state of one task.
type Config struct {
	Task     Task
	Mode     Mode
	Path     string
	Weight   float64
	LMConfig *modelconf.Config
	// LM is set for shallow fusion only.
	LM LanguageModel
}

// Resolve performs the loading a Decision requires and logs the LM that is
// actually in effect.
func Resolve(d Decision, t Target, l Loader, log zerolog.Logger) (Config, error) {
	cfg := Config{Task: t.Task, Mode: d.Mode, Path: d.Path, Weight: d.Weight}

	switch d.Mode {
	case Cold:
		p := filepath.Join(t.ModelDir, t.Task.ColdConfigName())
		lmCfg, err := l.LoadConfig(p, false)
		if err != nil {
			return Config{}, fmt.Errorf("load %s LM config: %w", t.Task, err)
		}
		if err := checkLabel(t, lmCfg, p); err != nil {
			return Config{}, err
		}
		lmCfg.NumClasses = t.NumClasses
		cfg.LMConfig = lmCfg
		if d.IgnoredPath != "" {
			log.Warn().Str("task", t.Task.String()).Str("ignored_lm_path", d.IgnoredPath).
				Msg("model was trained with cold fusion; runtime LM is not loaded")
		}

	case Shallow:
		p := filepath.Join(d.Path, "config.yml")
		lmCfg, err := l.LoadConfig(p, true)
		if err != nil {
			return Config{}, fmt.Errorf("load %s LM config: %w", t.Task, err)
		}
		if err := checkLabel(t, lmCfg, p); err != nil {
			return Config{}, err
		}
		lmCfg.NumClasses = t.NumClasses
		lm, err := l.LoadLM(lmCfg, d.Path)
		if err != nil {
			return Config{}, fmt.Errorf("load %s LM: %w", t.Task, err)
		}
		cfg.LMConfig = lmCfg
		cfg.LM = lm

	default:
		if d.IgnoredPath != "" {
			log.Warn().Str("task", t.Task.String()).Str("ignored_lm_path", d.IgnoredPath).
				Float64("lm_weight", d.Weight).
				Msg("LM path given without a positive weight; fusion disabled")
		}
	}

	log.Info().
		Str("task", t.Task.String()).
		Str("fusion", cfg.Mode.String()).
		Str("lm_path", cfg.Path).
		Float64("lm_weight", cfg.Weight).
		Msg("LM fusion resolved")
	return cfg, nil
}

func checkLabel(t Target, lmCfg *modelconf.Config, path string) error {
	if lmCfg.LabelType != t.LabelType {
		return fmt.Errorf("%w: %s task uses %q, LM %s uses %q",
			ErrLabelMismatch, t.Task, t.LabelType, path, lmCfg.LabelType)
	}
	return nil
}

// Active reports whether an LM contributes to the task's scores.
func (c Config) Active() bool {
	return c.Mode != None
}
