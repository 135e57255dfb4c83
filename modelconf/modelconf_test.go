package modelconf

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const nested = `
param:
  model_type: hierarchical_attention
  backend: pytorch
  input_type: speech
  label_type: word5
  label_type_sub: character
  subsample_list: [False, True, True, False]
  encoder_num_layers_sub: 3
  ctc_loss_weight_sub: 0.2
  rnnlm_fusion_type: cold_fusion
  rnnlm_path: /models/lm/word5
`

const flat = `
model_type: hierarchical_ctc
label_type: word1
label_type_sub: phone41
input_type: text
label_type_in: phone41
`

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadNested(t *testing.T) {
	cfg, err := Load(writeFile(t, nested), true)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ModelType != "hierarchical_attention" || cfg.LabelTypeSub != "character" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if got := cfg.SubsamplingFactor(); got != 4 {
		t.Errorf("SubsamplingFactor() = %d, want 4", got)
	}
	if got := cfg.SubsamplingFactorSub(); got != 2 {
		t.Errorf("SubsamplingFactorSub() = %d, want 2", got)
	}
	if path, ok := cfg.ColdFusion(false); !ok || path != "/models/lm/word5" {
		t.Errorf("ColdFusion(main) = %q, %v", path, ok)
	}
	if _, ok := cfg.ColdFusion(true); ok {
		t.Error("sub task has no fused LM path")
	}
	if cfg.UsesCTC() || !cfg.UsesCTCSub() {
		t.Errorf("UsesCTC = %v, UsesCTCSub = %v", cfg.UsesCTC(), cfg.UsesCTCSub())
	}
	if cfg.Modality() != InputSpeech {
		t.Errorf("Modality() = %q", cfg.Modality())
	}
}

func TestLoadFlat(t *testing.T) {
	cfg, err := Load(writeFile(t, flat), true)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Modality() != InputText || !cfg.UsesCTC() {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.SubsamplingFactor() != 1 || cfg.SubsamplingFactorSub() != 1 {
		t.Errorf("subsampling = %d/%d, want 1/1", cfg.SubsamplingFactor(), cfg.SubsamplingFactorSub())
	}
}

func TestLoadEvalValidation(t *testing.T) {
	p := writeFile(t, "label_type: word1\n")
	if _, err := Load(p, true); !errors.Is(err, ErrInvalid) {
		t.Errorf("err = %v, want ErrInvalid", err)
	}
	if _, err := Load(p, false); err != nil {
		t.Errorf("non-eval load should not validate: %v", err)
	}
	p = writeFile(t, "model_type: x\nlabel_type: word1\ninput_type: video\n")
	if _, err := Load(p, true); !errors.Is(err, ErrInvalid) {
		t.Errorf("err = %v, want ErrInvalid", err)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yml"), true); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want ErrNotExist", err)
	}
}

func TestParseSubsampleList(t *testing.T) {
	tests := []struct {
		name    string
		list    string
		want    int
		wantSub int
		wantErr bool
	}{
		{"bools", "[False, True, True, False]", 4, 2, false},
		{"ints", "[0, 1, 1, 0]", 4, 2, false},
		{"mixed", "[true, 0, 1, 1]", 8, 2, false},
		{"empty", "[]", 1, 1, false},
		{"word", "[0, maybe]", 0, 0, true},
		{"negative", "[0, -1]", 0, 0, true},
		{"scalar", "1", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte("model_type: hierarchical_attention\nlabel_type: word\nencoder_num_layers_sub: 3\nsubsample_list: " + tt.list + "\n"))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v", err)
			}
			if tt.wantErr {
				return
			}
			if got := cfg.SubsamplingFactor(); got != tt.want {
				t.Errorf("SubsamplingFactor() = %d, want %d", got, tt.want)
			}
			if got := cfg.SubsamplingFactorSub(); got != tt.wantSub {
				t.Errorf("SubsamplingFactorSub() = %d, want %d", got, tt.wantSub)
			}
		})
	}
}
