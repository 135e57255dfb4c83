// Package hiereval evaluates hierarchical (word + character) speech
// recognition models over a corpus' evaluation subsets.
package hiereval

import (
	"github.com/ieee0824/hiereval/dataset"
	"github.com/ieee0824/hiereval/decoder"
	"github.com/ieee0824/hiereval/evaluation"
	"github.com/ieee0824/hiereval/fusion"
	"github.com/ieee0824/hiereval/model"
	"github.com/ieee0824/hiereval/modelconf"
	"github.com/rs/zerolog"
)

// Evaluator wires the file-backed collaborators to an evaluation.Runner.
type Evaluator struct {
	Deps  evaluation.Collaborators
	log   zerolog.Logger
	sinks []evaluation.ResultSink
	runID string
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger passed to the runner and decoder.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Evaluator) {
		e.log = l
	}
}

// WithSink adds a result sink.
func WithSink(s evaluation.ResultSink) Option {
	return func(e *Evaluator) {
		e.sinks = append(e.sinks, s)
	}
}

// WithRunID fixes the run ID.
func WithRunID(id string) Option {
	return func(e *Evaluator) {
		e.runID = id
	}
}

// WithDecoder replaces the rescoring decoder.
func WithDecoder(d evaluation.Decoder) Option {
	return func(e *Evaluator) {
		e.Deps.Decoder = d
	}
}

// WithModels replaces the model provider.
func WithModels(p evaluation.ModelProvider) Option {
	return func(e *Evaluator) {
		e.Deps.Models = p
	}
}

// WithDatasets replaces the dataset provider.
func WithDatasets(p evaluation.DatasetProvider) Option {
	return func(e *Evaluator) {
		e.Deps.Datasets = p
	}
}

// NewEvaluator creates an Evaluator reading models, datasets and language
// models from disk.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	if e.Deps.Configs == nil {
		e.Deps.Configs = evaluation.ConfigLoaderFunc(modelconf.Load)
	}
	if e.Deps.Datasets == nil {
		e.Deps.Datasets = dataset.Provider{}
	}
	if e.Deps.Models == nil {
		e.Deps.Models = model.Provider{}
	}
	if e.Deps.LMs == nil {
		e.Deps.LMs = fusion.FileLoader{}
	}
	if e.Deps.Decoder == nil {
		e.Deps.Decoder = decoder.New(decoder.WithLogger(e.log))
	}
	return e
}

// Evaluate runs every subset in p and returns the report.
func (e *Evaluator) Evaluate(p evaluation.Params) (*evaluation.Report, error) {
	opts := []evaluation.Option{evaluation.WithLogger(e.log)}
	for _, s := range e.sinks {
		opts = append(opts, evaluation.WithSink(s))
	}
	if e.runID != "" {
		opts = append(opts, evaluation.WithRunID(e.runID))
	}
	r, err := evaluation.NewRunner(p, e.Deps, opts...)
	if err != nil {
		return nil, err
	}
	return r.Run()
}
