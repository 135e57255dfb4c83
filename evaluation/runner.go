// Package evaluation runs a hierarchical model over a list of evaluation
// subsets and aggregates word and character error rates.
package evaluation

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/ieee0824/hiereval/decodelen"
	"github.com/ieee0824/hiereval/fusion"
	"github.com/ieee0824/hiereval/modelconf"
	"github.com/ieee0824/hiereval/scoring"
	"github.com/rs/zerolog"
)

// ConfigFileName is the model configuration inside the model directory.
const ConfigFileName = "config.yml"

// State is the lifecycle state of a Runner.
type State int

const (
	Uninitialized State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "uninitialized"
}

// Params are the invocation parameters of a run.
type Params struct {
	Corpus       string
	EvalSets     []string
	DataSavePath string
	ModelPath    string
	// Epoch to restore; negative selects the latest checkpoint.
	Epoch     int
	BatchSize int
	// Decode carries the runtime LM weights in Main.LMWeight and Sub.LMWeight.
	Decode       scoring.JointConfig
	RNNLMPath    string
	RNNLMPathSub string
}

// RunContext is built once when the first subset is initialized and is
// read-only afterwards.
type RunContext struct {
	RunID     string
	Corpus    decodelen.Corpus
	ModelPath string
	Config    modelconf.Config
	Main      fusion.Config
	Sub       fusion.Config
	Model     Model
	Epoch     int
	Decode    scoring.JointConfig
	Options   scoring.Options
}

// Mode is the measurement tag of the run.
func (rc *RunContext) Mode() scoring.Mode {
	return rc.Decode.Mode()
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Runner) {
		r.log = l
	}
}

// WithSink adds a sink that receives the completed report.
func WithSink(s ResultSink) Option {
	return func(r *Runner) {
		r.sinks = append(r.sinks, s)
	}
}

// WithRunID fixes the run ID instead of generating one.
func WithRunID(id string) Option {
	return func(r *Runner) {
		r.runID = id
	}
}

// Runner drives one evaluation run.
type Runner struct {
	params Params
	corpus decodelen.Corpus
	deps   Collaborators
	sinks  []ResultSink
	log    zerolog.Logger
	runID  string

	state State
	rc    *RunContext
}

// NewRunner validates what can be checked without I/O. An unknown corpus
// fails here, before any dataset is built.
func NewRunner(p Params, deps Collaborators, opts ...Option) (*Runner, error) {
	corpus, err := decodelen.ParseCorpus(p.Corpus)
	if err != nil {
		return nil, err
	}
	if len(p.EvalSets) == 0 {
		return nil, errors.New("no evaluation sets given")
	}
	// The sub task is assumed present here; initialize checks it against
	// the model config.
	if err := p.Decode.Validate(true); err != nil {
		return nil, err
	}
	if deps.Configs == nil || deps.Datasets == nil || deps.Models == nil || deps.LMs == nil || deps.Decoder == nil {
		return nil, errors.New("missing collaborator")
	}
	r := &Runner{
		params: p,
		corpus: corpus,
		deps:   deps,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.runID == "" {
		r.runID = uuid.NewString()
	}
	r.log = r.log.With().Str("run_id", r.runID).Str("corpus", string(corpus)).Logger()
	return r, nil
}

// State returns the current lifecycle state.
func (r *Runner) State() State { return r.state }

// Context returns the run context, nil before initialization.
func (r *Runner) Context() *RunContext { return r.rc }

// Run evaluates every subset in order. Any error aborts the run and no
// report is produced.
func (r *Runner) Run() (*Report, error) {
	if r.state != Uninitialized {
		return nil, errors.New("runner already used")
	}
	mode := r.params.Decode.Mode()
	log := r.log.With().Str("mode", string(mode)).Logger()
	tag := ""
	if mode == scoring.Oracle {
		tag = "[oracle] "
	}

	rep := &Report{RunID: r.runID, Mode: mode, Task: fusion.Main.String()}
	if r.params.Decode.ScoreSubTask {
		rep.Task = fusion.Sub.String()
		rep.HasCER = true
	}

	var acc Accumulator
	for i, dataType := range r.params.EvalSets {
		var ds Dataset
		var err error
		if i == 0 {
			ds, err = r.initialize(dataType)
		} else {
			ds, err = r.dataset(r.rc.Config, dataType)
		}
		if err != nil {
			return nil, fmt.Errorf("subset %s: %w", dataType, err)
		}

		res, err := r.evalSubset(ds, dataType)
		if err != nil {
			return nil, fmt.Errorf("subset %s: %w", dataType, err)
		}
		acc.Add(res.WER, res.CER)
		rep.Subsets = append(rep.Subsets, res)

		ev := log.Info().Str("subset", dataType).Str("task", rep.Task).Float64("wer", res.WER)
		if rep.HasCER {
			ev.Float64("cer", res.CER).Msgf("%sWER / CER (%s, sub): %.3f / %.3f %%", tag, dataType, res.WER, res.CER)
		} else {
			ev.Msgf("%sWER (%s, main): %.3f %%", tag, dataType, res.WER)
		}
		for _, u := range res.Utterances {
			log.Debug().Str("subset", dataType).Str("utt", u.ID).Str("ref", u.Ref).Str("hyp", u.Hyp).
				Int("errors", u.Errors).Int("ref_len", u.RefLen).Msg("utterance")
		}
	}

	wer, cer := acc.Mean()
	rep.Epoch = r.rc.Epoch
	rep.Summary = Summary{MeanWER: wer, MeanCER: cer, Subsets: acc.Count}
	if rep.HasCER {
		log.Info().Float64("mean_wer", wer).Float64("mean_cer", cer).Int("subsets", acc.Count).
			Msgf("%sWER / CER (mean, sub): %.3f / %.3f %%", tag, wer, cer)
	} else {
		log.Info().Float64("mean_wer", wer).Int("subsets", acc.Count).
			Msgf("%sWER (mean, main): %.3f %%", tag, wer)
	}

	for _, s := range r.sinks {
		if err := s.Record(r.rc, rep); err != nil {
			return nil, fmt.Errorf("record results: %w", err)
		}
	}
	return rep, nil
}

func (r *Runner) evalSubset(ds Dataset, dataType string) (SubsetResult, error) {
	models := []Model{r.rc.Model}
	if r.rc.Decode.ScoreSubTask {
		rep, err := r.deps.Decoder.EvalChar(models, ds, r.rc.Options)
		if err != nil {
			return SubsetResult{}, fmt.Errorf("eval char: %w", err)
		}
		return SubsetResult{DataType: dataType, WER: rep.WER, CER: rep.CER, Utterances: rep.Utterances}, nil
	}
	rep, err := r.deps.Decoder.EvalWord(models, ds, r.rc.Options)
	if err != nil {
		return SubsetResult{}, fmt.Errorf("eval word: %w", err)
	}
	return SubsetResult{DataType: dataType, WER: rep.WER, Utterances: rep.Utterances}, nil
}

func (r *Runner) dataset(cfg modelconf.Config, dataType string) (Dataset, error) {
	spec := DatasetSpec{
		Corpus:       r.corpus,
		DataSavePath: r.params.DataSavePath,
		DataType:     dataType,
		BatchSize:    r.params.BatchSize,
		Config:       &cfg,
	}
	switch cfg.Modality() {
	case modelconf.InputText:
		return r.deps.Datasets.Text(spec)
	default:
		return r.deps.Datasets.Speech(spec)
	}
}

// initialize builds everything that depends on the first subset and
// moves the runner to Running.
func (r *Runner) initialize(dataType string) (Dataset, error) {
	p := r.params
	loaded, err := r.deps.Configs.Load(filepath.Join(p.ModelPath, ConfigFileName), true)
	if err != nil {
		return nil, fmt.Errorf("load model config: %w", err)
	}
	cfg := *loaded

	ds, err := r.dataset(cfg, dataType)
	if err != nil {
		return nil, fmt.Errorf("build dataset: %w", err)
	}
	cfg.NumClasses = ds.NumClasses()
	cfg.NumClassesSub = ds.NumClassesSub()
	if in, ok := ds.(interface{ NumClassesIn() int }); ok {
		cfg.NumClassesInput = in.NumClassesIn()
	}

	dec := p.Decode
	if err := dec.Validate(cfg.LabelTypeSub != ""); err != nil {
		return nil, err
	}
	if dec.ScoreSubTask && dec.JointDecoding {
		r.log.Warn().Float64("score_sub_weight", dec.ScoreSubWeight).
			Msg("score_sub_task is set; joint decoding knobs are ignored")
	}

	mainEnv, subEnv, err := r.envelopes(cfg, dec)
	if err != nil {
		return nil, err
	}

	mainFusion, err := fusion.Resolve(
		fusion.Decide(request(fusion.Main, &cfg, p.RNNLMPath, dec.Main.LMWeight)),
		fusion.Target{Task: fusion.Main, ModelDir: p.ModelPath, LabelType: cfg.LabelType, NumClasses: cfg.NumClasses},
		r.deps.LMs, r.log)
	if err != nil {
		return nil, err
	}
	subFusion, err := fusion.Resolve(
		fusion.Decide(request(fusion.Sub, &cfg, p.RNNLMPathSub, dec.Sub.LMWeight)),
		fusion.Target{Task: fusion.Sub, ModelDir: p.ModelPath, LabelType: cfg.LabelTypeSub, NumClasses: cfg.NumClassesSub},
		r.deps.LMs, r.log)
	if err != nil {
		return nil, err
	}

	model, err := r.deps.Models.Load(&cfg)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	epoch, err := model.LoadCheckpoint(p.ModelPath, p.Epoch)
	if err != nil {
		return nil, fmt.Errorf("restore checkpoint: %w", err)
	}
	for _, fc := range []fusion.Config{mainFusion, subFusion} {
		if fc.Mode == fusion.Shallow {
			model.AttachLM(fc.Task, fc.LM)
		}
	}
	if err := model.SetComputeDevice(false, true); err != nil {
		return nil, fmt.Errorf("set compute device: %w", err)
	}

	lm := scoring.LMWeights{Main: effectiveWeight(mainFusion), Sub: effectiveWeight(subFusion)}
	var opts scoring.Options
	if dec.ScoreSubTask {
		opts = dec.CharOptions(*subEnv, lm)
	} else {
		opts = dec.WordOptions(*mainEnv, subEnv, lm)
	}
	opts.BatchSize = p.BatchSize

	r.rc = &RunContext{
		RunID:     r.runID,
		Corpus:    r.corpus,
		ModelPath: p.ModelPath,
		Config:    cfg,
		Main:      mainFusion,
		Sub:       subFusion,
		Model:     model,
		Epoch:     epoch,
		Decode:    dec,
		Options:   opts,
	}
	r.state = Running

	r.log.Info().
		Int("epoch", epoch).
		Int("beam_width", dec.Main.BeamWidth).
		Float64("length_penalty", dec.Main.LengthPenalty).
		Float64("coverage_penalty", dec.Main.CoveragePenalty).
		Int("beam_width_sub", dec.Sub.BeamWidth).
		Float64("length_penalty_sub", dec.Sub.LengthPenalty).
		Float64("coverage_penalty_sub", dec.Sub.CoveragePenalty).
		Bool("a2c_oracle", dec.A2COracle).
		Bool("resolving_unk", dec.ResolvingUnk).
		Bool("joint_decoding", dec.JointDecoding).
		Float64("score_sub_weight", dec.ScoreSubWeight).
		Bool("score_sub_task", dec.ScoreSubTask).
		Str("mode", string(dec.Mode())).
		Msg("decode configuration")
	return ds, nil
}

// envelopes looks up the length bounds the report mode needs. The sub
// envelope is nil when the sub task does not take part.
func (r *Runner) envelopes(cfg modelconf.Config, dec scoring.JointConfig) (*scoring.Envelope, *scoring.Envelope, error) {
	lookup := func(labelType string) (*scoring.Envelope, error) {
		level, err := decodelen.LevelOf(labelType)
		if err != nil {
			return nil, err
		}
		b, err := decodelen.LengthBounds(r.corpus, level)
		if err != nil {
			return nil, err
		}
		return &scoring.Envelope{Level: level, Bounds: b}, nil
	}

	if dec.ScoreSubTask {
		sub, err := lookup(cfg.LabelTypeSub)
		return nil, sub, err
	}
	main, err := lookup(cfg.LabelType)
	if err != nil {
		return nil, nil, err
	}
	if !dec.SubParticipates() {
		return main, nil, nil
	}
	sub, err := lookup(cfg.LabelTypeSub)
	if err != nil {
		return nil, nil, err
	}
	return main, sub, nil
}

func request(task fusion.Task, cfg *modelconf.Config, runtimePath string, runtimeWeight float64) fusion.Request {
	coldPath, _ := cfg.ColdFusion(task == fusion.Sub)
	return fusion.Request{
		Task:            task,
		ColdFusionType:  cfg.RNNLMFusionType,
		ColdLMPath:      coldPath,
		RuntimeLMPath:   runtimePath,
		RuntimeLMWeight: runtimeWeight,
	}
}

func effectiveWeight(c fusion.Config) float64 {
	if !c.Active() {
		return 0
	}
	return c.Weight
}
