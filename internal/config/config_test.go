package config

import (
	"flag"
	"io"
	"testing"
)

func parse(t *testing.T, args ...string) *EvalConfig {
	t.Helper()
	var c EvalConfig
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	c.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatal(err)
	}
	return &c
}

func TestBindFlagsDefaults(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("RESULTS_DB", "/tmp/results.db")
	t.Setenv("METRICS_FILE", "")
	c := parse(t)
	if c.Epoch != -1 || c.BatchSize != 1 || c.BeamWidth != 1 || c.BeamWidthSub != 1 {
		t.Errorf("defaults = %+v", c)
	}
	if c.LogLevel != "info" || c.ResultsDB != "/tmp/results.db" || c.MetricsFile != "" {
		t.Errorf("env defaults = %q %q %q", c.LogLevel, c.ResultsDB, c.MetricsFile)
	}
	if c.ResolvingUnk || c.JointDecoding || c.ScoreSubTask || c.A2COracle {
		t.Error("toggles default to true")
	}
}

func TestBindFlags(t *testing.T) {
	c := parse(t,
		"-corpus", "wsj",
		"-eval-sets", "test_dev93, test_eval92,",
		"-model-path", "/models/hier",
		"-beam-width", "4",
		"-length-penalty-sub", "0.5",
		"-rnnlm-weight-sub", "0.3",
		"-rnnlm-path-sub", "/models/lm",
		"-joint-decoding", "yes",
		"-resolving-unk=On",
		"-a2c-oracle", "1",
		"-score-sub-weight", "0.3",
	)
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
	p := c.Params()
	if p.Corpus != "wsj" || len(p.EvalSets) != 2 || p.EvalSets[1] != "test_eval92" {
		t.Errorf("params = %+v", p)
	}
	d := p.Decode
	if d.Main.BeamWidth != 4 || d.Sub.LengthPenalty != 0.5 || d.Sub.LMWeight != 0.3 {
		t.Errorf("decode = %+v", d)
	}
	if !d.JointDecoding || !d.ResolvingUnk || !d.A2COracle || d.ScoreSubTask || d.ScoreSubWeight != 0.3 {
		t.Errorf("toggles = %+v", d)
	}
	if p.RNNLMPathSub != "/models/lm" {
		t.Errorf("RNNLMPathSub = %q", p.RNNLMPathSub)
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"y", true, false},
		{"YES", true, false},
		{"t", true, false},
		{"True", true, false},
		{"on", true, false},
		{"1", true, false},
		{"n", false, false},
		{"no", false, false},
		{"f", false, false},
		{"FALSE", false, false},
		{"off", false, false},
		{"0", false, false},
		{"maybe", false, true},
		{"", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBool(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseBool(%q) = %v", tt.in, got)
			}
		})
	}
}

func TestBoolFlagRejectsGarbage(t *testing.T) {
	var c EvalConfig
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	c.BindFlags(fs)
	if err := fs.Parse([]string{"-joint-decoding=maybe"}); err == nil {
		t.Error("expected error")
	}
}

func TestValidate(t *testing.T) {
	c := parse(t)
	c.BatchSize = 0
	if err := c.Validate(); err == nil {
		t.Error("expected error for empty config")
	}
}
