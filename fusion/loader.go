package fusion

import (
	"fmt"

	"github.com/ieee0824/hiereval/checkpoint"
	"github.com/ieee0824/hiereval/language"
	"github.com/ieee0824/hiereval/modelconf"
)

// FileLoader loads LM configs from YAML and n-gram LMs from the newest
// checkpoint of an LM directory.
type FileLoader struct{}

// LoadConfig implements Loader.
func (FileLoader) LoadConfig(path string, isEval bool) (*modelconf.Config, error) {
	return modelconf.Load(path, isEval)
}

// LoadLM implements Loader. Only n-gram (ARPA) LMs can be loaded.
func (FileLoader) LoadLM(cfg *modelconf.Config, dir string) (LanguageModel, error) {
	switch cfg.ModelType {
	case "ngram", "arpa":
	default:
		return nil, fmt.Errorf("unsupported LM model_type %q", cfg.ModelType)
	}
	p, epoch, err := checkpoint.Resolve(dir, checkpoint.Latest)
	if err != nil {
		return nil, err
	}
	m, err := language.LoadFile(p)
	if err != nil {
		return nil, fmt.Errorf("epoch %d: %w", epoch, err)
	}
	return m, nil
}
