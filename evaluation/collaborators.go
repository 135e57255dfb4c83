package evaluation

import (
	"github.com/ieee0824/hiereval/decodelen"
	"github.com/ieee0824/hiereval/fusion"
	"github.com/ieee0824/hiereval/modelconf"
	"github.com/ieee0824/hiereval/scoring"
)

// ConfigLoader reads a persisted model configuration.
type ConfigLoader interface {
	Load(path string, isEval bool) (*modelconf.Config, error)
}

// ConfigLoaderFunc adapts a function to ConfigLoader.
type ConfigLoaderFunc func(path string, isEval bool) (*modelconf.Config, error)

// Load implements ConfigLoader.
func (f ConfigLoaderFunc) Load(path string, isEval bool) (*modelconf.Config, error) {
	return f(path, isEval)
}

// Dataset is one evaluation subset.
type Dataset interface {
	Name() string
	NumClasses() int
	NumClassesSub() int
}

// DatasetSpec tells a DatasetProvider which subset to build.
type DatasetSpec struct {
	Corpus       decodelen.Corpus
	DataSavePath string
	DataType     string
	BatchSize    int
	Config       *modelconf.Config
}

// DatasetProvider builds datasets for speech or text (phone-to-word) input.
type DatasetProvider interface {
	Speech(spec DatasetSpec) (Dataset, error)
	Text(spec DatasetSpec) (Dataset, error)
}

// Model is a restored hierarchical model. It must not be mutated once
// evaluation starts beyond what initialization does.
type Model interface {
	// LoadCheckpoint restores parameters and returns the epoch restored.
	LoadCheckpoint(dir string, epoch int) (int, error)
	SetComputeDevice(deterministic, benchmark bool) error
	AttachLM(task fusion.Task, lm fusion.LanguageModel)
}

// ModelProvider builds a model from its configuration.
type ModelProvider interface {
	Load(cfg *modelconf.Config) (Model, error)
}

// UtteranceResult is one row of a per-utterance report.
type UtteranceResult struct {
	ID     string
	Ref    string
	Hyp    string
	Errors int
	RefLen int
}

// WordReport is returned by main task evaluation.
type WordReport struct {
	WER        float64
	Utterances []UtteranceResult
}

// CharReport is returned by sub task evaluation.
type CharReport struct {
	WER        float64
	CER        float64
	Utterances []UtteranceResult
}

// Decoder decodes a dataset and scores it. Retrying is up to the
// implementation; an error aborts the run.
type Decoder interface {
	EvalWord(models []Model, ds Dataset, opts scoring.Options) (WordReport, error)
	EvalChar(models []Model, ds Dataset, opts scoring.Options) (CharReport, error)
}

// Collaborators are the services the Runner drives.
type Collaborators struct {
	Configs  ConfigLoader
	Datasets DatasetProvider
	Models   ModelProvider
	LMs      fusion.Loader
	Decoder  Decoder
}

// ResultSink receives a completed run. Sinks are only called when every
// subset succeeded.
type ResultSink interface {
	Record(rc *RunContext, rep *Report) error
}
