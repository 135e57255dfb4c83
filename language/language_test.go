package language

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ieee0824/hiereval/internal/mathutil"
)

const testARPA = `\data\
ngram 1=5
ngram 2=3

\1-grams:
-1.0	</s>
-1.0	<s>	-0.5
-0.5	the
-0.7	cat	-0.3
-2.0	<unk>

\2-grams:
-0.3	<s>	the
-0.4	the	cat
-0.2	cat	</s>

\end\
`

func TestLoadARPA(t *testing.T) {
	model, err := LoadARPA(strings.NewReader(testARPA))
	if err != nil {
		t.Fatalf("LoadARPA error: %v", err)
	}
	if model.Order != 2 {
		t.Errorf("Order = %d, want 2", model.Order)
	}
	if got := model.Count(1); got != 5 {
		t.Errorf("Count(1) = %d, want 5", got)
	}
	if got := model.Count(2); got != 3 {
		t.Errorf("Count(2) = %d, want 3", got)
	}
}

func TestLogProb(t *testing.T) {
	model, err := LoadARPA(strings.NewReader(testARPA))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		history []string
		token   string
		want    float64
	}{
		{"bigram_hit", []string{BOS}, "the", -0.3 * math.Ln10},
		{"backoff_to_unigram", []string{"cat"}, "the", (-0.3 - 0.5) * math.Ln10},
		{"history_without_backoff", []string{"the"}, "the", -0.5 * math.Ln10},
		{"unk_fallback", []string{"the"}, "dog", -2.0 * math.Ln10},
		{"long_history_trimmed", []string{BOS, "the"}, "cat", -0.4 * math.Ln10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := model.LogProb(tt.history, tt.token)
			if math.Abs(got-tt.want) > 1e-10 {
				t.Errorf("LogProb = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestLogProbNoUnk(t *testing.T) {
	arpa := "\\data\\\nngram 1=1\n\n\\1-grams:\n-0.5\ta\n\n\\end\\\n"
	model, err := LoadARPA(strings.NewReader(arpa))
	if err != nil {
		t.Fatal(err)
	}
	if got := model.LogProb(nil, "b"); got != mathutil.LogZero {
		t.Errorf("LogProb(b) = %f, want LogZero", got)
	}
}

func TestSentenceLogProb(t *testing.T) {
	model, err := LoadARPA(strings.NewReader(testARPA))
	if err != nil {
		t.Fatal(err)
	}
	got := model.SentenceLogProb([]string{"the", "cat"})
	want := (-0.3 - 0.4 - 0.2) * math.Ln10
	if math.Abs(got-want) > 1e-10 {
		t.Errorf("SentenceLogProb = %f, want %f", got, want)
	}
}

func TestLoadARPAErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no_data", "\\1-grams:\n-1.0\ta\n\\end\\\n"},
		{"bad_prob", "\\data\\\nngram 1=1\n\\1-grams:\nx\ta\n\\end\\\n"},
		{"short_line", "\\data\\\nngram 2=1\n\\2-grams:\n-1.0\ta\n\\end\\\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadARPA(strings.NewReader(tt.body)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadFileFromDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ARPAFileName), []byte(testARPA), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := LoadFile(dir)
	if err != nil {
		t.Fatal(err)
	}
	if m.Order != 2 {
		t.Errorf("Order = %d", m.Order)
	}
	if _, err := LoadFile(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}
