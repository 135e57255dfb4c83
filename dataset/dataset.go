// Package dataset reads evaluation subsets prepared on disk.
//
// A subset is a tab-separated manifest <data>/<data_type>.tsv with the
// columns utt_id, input_len, ref_main, ref_sub and, for text input,
// input_tokens. Vocabularies live in <data>/vocab/<label_type>.txt, one
// token per line.
package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ieee0824/hiereval/evaluation"
	"github.com/ieee0824/hiereval/modelconf"
)

const (
	ManifestExt = ".tsv"
	VocabDir    = "vocab"
)

// Utterance is one manifest row.
type Utterance struct {
	ID string
	// InputLen is the number of input frames (speech) or tokens (text).
	InputLen int
	RefMain  string
	RefSub   string
	// InputTokens is only set for text input.
	InputTokens []string
}

// Set is a speech evaluation subset.
type Set struct {
	name       string
	utts       []Utterance
	numClasses int
	numSub     int
	batchSize  int
}

func (s *Set) Name() string       { return s.name }
func (s *Set) NumClasses() int    { return s.numClasses }
func (s *Set) NumClassesSub() int { return s.numSub }

// Utterances returns the rows in manifest order.
func (s *Set) Utterances() []Utterance { return s.utts }

// Batches splits the subset into batches of the configured size. The last
// batch may be shorter.
func (s *Set) Batches() [][]Utterance {
	size := s.batchSize
	if size < 1 {
		size = 1
	}
	var out [][]Utterance
	for i := 0; i < len(s.utts); i += size {
		end := min(i+size, len(s.utts))
		out = append(out, s.utts[i:end])
	}
	return out
}

// TextSet is a phone-to-word subset. It also reports the input vocabulary.
type TextSet struct {
	*Set
	numIn int
}

// NumClassesIn is the input vocabulary size.
func (s *TextSet) NumClassesIn() int { return s.numIn }

// LoadManifest reads manifest rows. Blank lines, lines starting with '#'
// and a leading header row are skipped.
func LoadManifest(r io.Reader) ([]Utterance, error) {
	var utts []Utterance
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(utts) == 0 && parts[0] == "utt_id" {
			continue
		}
		if len(parts) < 4 {
			return nil, fmt.Errorf("line %d: expected at least 4 tab-separated fields, got %d", lineNum, len(parts))
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil || n < 0 {
			return nil, fmt.Errorf("line %d: invalid input length %q", lineNum, parts[1])
		}
		if seen[parts[0]] {
			return nil, fmt.Errorf("line %d: duplicate utterance %q", lineNum, parts[0])
		}
		seen[parts[0]] = true

		u := Utterance{ID: parts[0], InputLen: n, RefMain: parts[2], RefSub: parts[3]}
		if len(parts) > 4 {
			u.InputTokens = strings.Fields(parts[4])
		}
		utts = append(utts, u)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return utts, nil
}

// LoadVocab reads a vocabulary, one token per line.
func LoadVocab(r io.Reader) ([]string, error) {
	var vocab []string
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		tok := strings.TrimSpace(scanner.Text())
		if tok == "" || seen[tok] {
			continue
		}
		seen[tok] = true
		vocab = append(vocab, tok)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return vocab, nil
}

// ManifestPath is where the manifest of a subset lives.
func ManifestPath(dataSavePath, dataType string) string {
	return filepath.Join(dataSavePath, dataType+ManifestExt)
}

// VocabPath is where the vocabulary of a label type lives.
func VocabPath(dataSavePath, labelType string) string {
	return filepath.Join(dataSavePath, VocabDir, labelType+".txt")
}

// Provider builds subsets from files. It implements
// evaluation.DatasetProvider.
type Provider struct{}

// Speech builds a speech subset.
func (Provider) Speech(spec evaluation.DatasetSpec) (evaluation.Dataset, error) {
	return loadSet(spec)
}

// Text builds a phone-to-word subset; every row must carry input tokens.
func (Provider) Text(spec evaluation.DatasetSpec) (evaluation.Dataset, error) {
	set, err := loadSet(spec)
	if err != nil {
		return nil, err
	}
	for i := range set.utts {
		u := &set.utts[i]
		if len(u.InputTokens) == 0 {
			return nil, fmt.Errorf("%s: utterance %q has no input tokens", spec.DataType, u.ID)
		}
		if u.InputLen == 0 {
			u.InputLen = len(u.InputTokens)
		}
	}
	if spec.Config == nil || spec.Config.LabelTypeIn == "" {
		return nil, errors.New("text input requires label_type_in")
	}
	numIn, err := vocabSize(spec.DataSavePath, spec.Config.LabelTypeIn)
	if err != nil {
		return nil, err
	}
	return &TextSet{Set: set, numIn: numIn}, nil
}

func loadSet(spec evaluation.DatasetSpec) (*Set, error) {
	cfg := spec.Config
	if cfg == nil {
		cfg = &modelconf.Config{}
	}
	f, err := os.Open(ManifestPath(spec.DataSavePath, spec.DataType))
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	utts, err := LoadManifest(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", spec.DataType, err)
	}

	set := &Set{name: spec.DataType, utts: utts, batchSize: spec.BatchSize}
	if set.numClasses, err = vocabSize(spec.DataSavePath, cfg.LabelType); err != nil {
		return nil, err
	}
	if cfg.LabelTypeSub != "" {
		if set.numSub, err = vocabSize(spec.DataSavePath, cfg.LabelTypeSub); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func vocabSize(dataSavePath, labelType string) (int, error) {
	if labelType == "" {
		return 0, errors.New("label type is empty")
	}
	f, err := os.Open(VocabPath(dataSavePath, labelType))
	if err != nil {
		return 0, fmt.Errorf("open vocabulary: %w", err)
	}
	defer f.Close()
	vocab, err := LoadVocab(f)
	if err != nil {
		return 0, fmt.Errorf("read vocabulary %s: %w", labelType, err)
	}
	return len(vocab), nil
}
