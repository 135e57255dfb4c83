package decodelen

import (
	"errors"
	"testing"
)

func TestProfilesValid(t *testing.T) {
	for _, c := range Corpora() {
		levels := c.Levels()
		if len(levels) == 0 {
			t.Errorf("%s defines no levels", c)
		}
		for _, l := range levels {
			b, err := LengthBounds(c, l)
			if err != nil {
				t.Fatalf("LengthBounds(%s, %s): %v", c, l, err)
			}
			if !b.Valid() {
				t.Errorf("%s/%s bounds invalid: %+v", c, l, b)
			}
		}
	}
}

func TestLengthBounds(t *testing.T) {
	tests := []struct {
		corpus Corpus
		level  Level
		want   Bounds
	}{
		{WSJ, Word, Bounds{MaxLen: 32, MinLen: 2, MaxLenRatio: 1, MinLenRatio: 0}},
		{WSJ, Char, Bounds{MaxLen: 199, MinLen: 10, MaxLenRatio: 1, MinLenRatio: 0.2}},
		{LibriSpeech, Char, Bounds{MaxLen: 600, MinLen: 1, MaxLenRatio: 1, MinLenRatio: 0.2}},
		{SWBD, Phone, Bounds{MaxLen: 300, MinLen: 1, MaxLenRatio: 1, MinLenRatio: 0.05}},
		{TIMIT, Phone, Bounds{MaxLen: 71, MinLen: 13, MaxLenRatio: 1, MinLenRatio: 0}},
	}
	for _, tt := range tests {
		t.Run(string(tt.corpus)+"/"+string(tt.level), func(t *testing.T) {
			got, err := LengthBounds(tt.corpus, tt.level)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLengthBoundsUndefinedLevel(t *testing.T) {
	tests := []struct {
		corpus Corpus
		level  Level
	}{
		{TIMIT, Word},
		{TIMIT, Char},
		{LibriSpeech, Phone},
	}
	for _, tt := range tests {
		_, err := LengthBounds(tt.corpus, tt.level)
		if !errors.Is(err, ErrUndefinedLevel) {
			t.Errorf("LengthBounds(%s, %s) err = %v, want ErrUndefinedLevel", tt.corpus, tt.level, err)
		}
	}
}

func TestParseCorpus(t *testing.T) {
	if c, err := ParseCorpus("LibriSpeech"); err != nil || c != LibriSpeech {
		t.Errorf("ParseCorpus(LibriSpeech) = %q, %v", c, err)
	}
	if _, err := ParseCorpus("foo"); !errors.Is(err, ErrUnsupportedCorpus) {
		t.Errorf("ParseCorpus(foo) err = %v, want ErrUnsupportedCorpus", err)
	}
	if _, err := LengthBounds(Corpus("foo"), Word); !errors.Is(err, ErrUnsupportedCorpus) {
		t.Errorf("LengthBounds(foo) err = %v, want ErrUnsupportedCorpus", err)
	}
}

func TestLevelOf(t *testing.T) {
	tests := []struct {
		label string
		want  Level
	}{
		{"word_freq10", Word},
		{"character", Char},
		{"character_wb", Char},
		{"kanji_divide", Char},
		{"kana", Char},
		{"phone61", Phone},
	}
	for _, tt := range tests {
		got, err := LevelOf(tt.label)
		if err != nil || got != tt.want {
			t.Errorf("LevelOf(%q) = %q, %v; want %q", tt.label, got, err, tt.want)
		}
	}
	if _, err := LevelOf("pos"); !errors.Is(err, ErrUndefinedLevel) {
		t.Errorf("LevelOf(pos) err = %v", err)
	}
}

func TestEnvelope(t *testing.T) {
	b := Bounds{MaxLen: 600, MinLen: 1, MaxLenRatio: 1, MinLenRatio: 0.2}
	tests := []struct {
		inputLen         int
		wantMin, wantMax int
	}{
		{100, 20, 100},
		{1000, 200, 600},
		{3, 1, 3},
		{0, 1, 600},
	}
	for _, tt := range tests {
		gotMin, gotMax := b.Envelope(tt.inputLen)
		if gotMin != tt.wantMin || gotMax != tt.wantMax {
			t.Errorf("Envelope(%d) = (%d, %d), want (%d, %d)", tt.inputLen, gotMin, gotMax, tt.wantMin, tt.wantMax)
		}
	}

	wsj := Bounds{MaxLen: 199, MinLen: 10, MaxLenRatio: 1, MinLenRatio: 0.2}
	if gotMin, gotMax := wsj.Envelope(5); gotMin != 5 || gotMax != 5 {
		t.Errorf("minimum not capped at maximum: (%d, %d)", gotMin, gotMax)
	}
}
