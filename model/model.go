// Package model is a handle over a restored hierarchical checkpoint.
//
// The neural network runs outside this module. For each evaluation subset
// it dumps the hypotheses of both tasks into <checkpoint>/<data_type>.nbest:
//
//	utt_id<TAB>main|sub<TAB>score<TAB>coverage<TAB>token token ...
//
// Scores are log probabilities. The handle serves those lists to the
// decoder together with any attached shallow-fusion language models.
package model

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/ieee0824/hiereval/checkpoint"
	"github.com/ieee0824/hiereval/device"
	"github.com/ieee0824/hiereval/evaluation"
	"github.com/ieee0824/hiereval/fusion"
	"github.com/ieee0824/hiereval/modelconf"
)

// NBestExt is the extension of hypothesis dumps.
const NBestExt = ".nbest"

// ErrNotRestored is returned when hypotheses are requested before a
// checkpoint was loaded.
var ErrNotRestored = errors.New("model not restored")

// Hypothesis is one candidate produced by the network.
type Hypothesis struct {
	Tokens   []string
	Score    float64
	Coverage float64
}

// NBest holds the candidates of one utterance, best first as dumped.
type NBest struct {
	Main []Hypothesis
	Sub  []Hypothesis
}

// Handle is a restored model. It implements evaluation.Model.
type Handle struct {
	cfg modelconf.Config

	dir    string
	epoch  int
	dev    device.Info
	hasDev bool
	lms    map[fusion.Task]fusion.LanguageModel

	mu    sync.Mutex
	cache map[string]map[string]*NBest
}

// New builds an unrestored handle.
func New(cfg *modelconf.Config) (*Handle, error) {
	if cfg == nil {
		return nil, errors.New("nil model config")
	}
	if cfg.NumClasses <= 0 {
		return nil, fmt.Errorf("%w: num_classes not set", modelconf.ErrInvalid)
	}
	return &Handle{
		cfg:   *cfg,
		lms:   make(map[fusion.Task]fusion.LanguageModel),
		cache: make(map[string]map[string]*NBest),
	}, nil
}

// Config returns the configuration the handle was built from.
func (h *Handle) Config() modelconf.Config { return h.cfg }

// LoadCheckpoint resolves model.epoch-<epoch> under dir. A negative epoch
// selects the latest.
func (h *Handle) LoadCheckpoint(dir string, epoch int) (int, error) {
	path, got, err := checkpoint.Resolve(dir, epoch)
	if err != nil {
		return 0, err
	}
	h.dir, h.epoch = path, got
	return got, nil
}

// Epoch is the restored epoch.
func (h *Handle) Epoch() int { return h.epoch }

// SetComputeDevice claims the host CPU.
func (h *Handle) SetComputeDevice(deterministic, benchmark bool) error {
	info, err := device.Claim(deterministic, benchmark)
	if err != nil {
		return err
	}
	h.dev, h.hasDev = info, true
	return nil
}

// Device returns the claimed device.
func (h *Handle) Device() (device.Info, bool) { return h.dev, h.hasDev }

// AttachLM sets the shallow-fusion LM of a task.
func (h *Handle) AttachLM(task fusion.Task, lm fusion.LanguageModel) {
	h.lms[task] = lm
}

// LM returns the attached LM of a task, or nil.
func (h *Handle) LM(task fusion.Task) fusion.LanguageModel {
	return h.lms[task]
}

// NBest returns the hypotheses dumped for a subset, keyed by utterance.
func (h *Handle) NBest(dataType string) (map[string]*NBest, error) {
	if h.dir == "" {
		return nil, ErrNotRestored
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if lists, ok := h.cache[dataType]; ok {
		return lists, nil
	}

	f, err := os.Open(filepath.Join(h.dir, dataType+NBestExt))
	if err != nil {
		return nil, fmt.Errorf("open hypotheses: %w", err)
	}
	defer f.Close()
	lists, err := LoadNBest(f)
	if err != nil {
		return nil, fmt.Errorf("%s%s: %w", dataType, NBestExt, err)
	}
	h.cache[dataType] = lists
	return lists, nil
}

// LoadNBest parses a hypothesis dump.
func LoadNBest(r io.Reader) (map[string]*NBest, error) {
	lists := make(map[string]*NBest)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "\t", 5)
		if len(parts) < 4 {
			return nil, fmt.Errorf("line %d: expected at least 4 tab-separated fields, got %d", lineNum, len(parts))
		}
		score, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid score: %w", lineNum, err)
		}
		coverage, err := strconv.ParseFloat(parts[3], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid coverage: %w", lineNum, err)
		}
		hyp := Hypothesis{Score: score, Coverage: coverage}
		if len(parts) == 5 {
			hyp.Tokens = strings.Fields(parts[4])
		}

		nb, ok := lists[parts[0]]
		if !ok {
			nb = &NBest{}
			lists[parts[0]] = nb
		}
		switch parts[1] {
		case fusion.Main.String():
			nb.Main = append(nb.Main, hyp)
		case fusion.Sub.String():
			nb.Sub = append(nb.Sub, hyp)
		default:
			return nil, fmt.Errorf("line %d: unknown task %q", lineNum, parts[1])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lists, nil
}

// Provider builds handles. It implements evaluation.ModelProvider.
type Provider struct{}

// Load builds a handle from the model configuration.
func (Provider) Load(cfg *modelconf.Config) (evaluation.Model, error) {
	h, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return h, nil
}
