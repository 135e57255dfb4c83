// Package decodelen holds the per-corpus output length envelopes used to
// stop beam search.
package decodelen

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

var (
	// ErrUnsupportedCorpus is returned for a corpus outside the table.
	ErrUnsupportedCorpus = errors.New("unsupported corpus")
	// ErrUndefinedLevel is returned when a corpus has no bounds for a level.
	ErrUndefinedLevel = errors.New("undefined output level")
)

// Corpus identifies an evaluation corpus.
type Corpus string

const (
	CSJ         Corpus = "csj"
	SWBD        Corpus = "swbd"
	LibriSpeech Corpus = "librispeech"
	WSJ         Corpus = "wsj"
	TIMIT       Corpus = "timit"
)

// Level is an output granularity.
type Level string

const (
	Word  Level = "word"
	Char  Level = "char"
	Phone Level = "phone"
)

// Bounds is the admissible output length of a decoder, both in absolute
// tokens and as a ratio of the encoder length.
type Bounds struct {
	MaxLen      int
	MinLen      int
	MaxLenRatio float64
	MinLenRatio float64
}

// profiles must not be modified after init.
var profiles = map[Corpus]map[Level]Bounds{
	CSJ: {
		Word:  {MaxLen: 100, MinLen: 1, MaxLenRatio: 1, MinLenRatio: 0},
		Char:  {MaxLen: 200, MinLen: 1, MaxLenRatio: 1, MinLenRatio: 0.2},
		Phone: {MaxLen: 200, MinLen: 1, MaxLenRatio: 1, MinLenRatio: 0},
	},
	SWBD: {
		Word:  {MaxLen: 100, MinLen: 1, MaxLenRatio: 1, MinLenRatio: 0},
		Char:  {MaxLen: 300, MinLen: 1, MaxLenRatio: 1, MinLenRatio: 0.1},
		Phone: {MaxLen: 300, MinLen: 1, MaxLenRatio: 1, MinLenRatio: 0.05},
	},
	LibriSpeech: {
		Word: {MaxLen: 200, MinLen: 1, MaxLenRatio: 1, MinLenRatio: 0},
		Char: {MaxLen: 600, MinLen: 1, MaxLenRatio: 1, MinLenRatio: 0.2},
	},
	// dev93 word 2-32, char 10-199; test_eval92 word 3-30, char 16-195
	WSJ: {
		Word:  {MaxLen: 32, MinLen: 2, MaxLenRatio: 1, MinLenRatio: 0},
		Char:  {MaxLen: 199, MinLen: 10, MaxLenRatio: 1, MinLenRatio: 0.2},
		Phone: {MaxLen: 200, MinLen: 1, MaxLenRatio: 1, MinLenRatio: 0},
	},
	// dev 13-71, test 13-69
	TIMIT: {
		Phone: {MaxLen: 71, MinLen: 13, MaxLenRatio: 1, MinLenRatio: 0},
	},
}

// ParseCorpus validates a corpus name.
func ParseCorpus(name string) (Corpus, error) {
	c := Corpus(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := profiles[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedCorpus, name)
	}
	return c, nil
}

// Corpora returns every supported corpus in name order.
func Corpora() []Corpus {
	out := make([]Corpus, 0, len(profiles))
	for c := range profiles {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Levels returns the output levels the corpus defines bounds for.
func (c Corpus) Levels() []Level {
	var out []Level
	for _, l := range []Level{Word, Char, Phone} {
		if _, ok := profiles[c][l]; ok {
			out = append(out, l)
		}
	}
	return out
}

// LengthBounds looks up the decode length envelope of a corpus and level.
func LengthBounds(c Corpus, l Level) (Bounds, error) {
	levels, ok := profiles[c]
	if !ok {
		return Bounds{}, fmt.Errorf("%w: %q", ErrUnsupportedCorpus, string(c))
	}
	b, ok := levels[l]
	if !ok {
		return Bounds{}, fmt.Errorf("%w: %s has no %s bounds", ErrUndefinedLevel, c, l)
	}
	return b, nil
}

// LevelOf maps a label type such as "word_freq10" or "character_wb" to
// its output level.
func LevelOf(labelType string) (Level, error) {
	lt := strings.ToLower(labelType)
	switch {
	case strings.HasPrefix(lt, "word"):
		return Word, nil
	case strings.HasPrefix(lt, "char"), strings.HasPrefix(lt, "kanji"), strings.HasPrefix(lt, "kana"):
		return Char, nil
	case strings.HasPrefix(lt, "phone"):
		return Phone, nil
	}
	return "", fmt.Errorf("%w: label type %q", ErrUndefinedLevel, labelType)
}

// Envelope returns the effective minimum and maximum output length for an
// encoder output of inputLen frames. The minimum never exceeds the maximum.
func (b Bounds) Envelope(inputLen int) (minLen, maxLen int) {
	maxLen = b.MaxLen
	if r := int(math.Floor(b.MaxLenRatio * float64(inputLen))); inputLen > 0 && r < maxLen {
		maxLen = r
	}
	minLen = b.MinLen
	if r := int(math.Ceil(b.MinLenRatio*float64(inputLen) - 1e-9)); r > minLen {
		minLen = r
	}
	if minLen > maxLen {
		minLen = maxLen
	}
	return minLen, maxLen
}

// Valid reports whether the bounds satisfy the ordering invariants.
func (b Bounds) Valid() bool {
	return b.MinLen <= b.MaxLen &&
		b.MinLenRatio >= 0 && b.MinLenRatio <= b.MaxLenRatio && b.MaxLenRatio <= 1
}
