package logx_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ieee0824/hiereval/logx"
	"github.com/rs/zerolog"
)

func TestConfigureLogLevel(t *testing.T) {
	defer logx.Configure("info")

	logx.Configure("all")
	if zerolog.GlobalLevel() != zerolog.TraceLevel {
		t.Fatalf("expected trace level, got %s", zerolog.GlobalLevel())
	}

	logx.Configure("WARNING")
	if zerolog.GlobalLevel() != zerolog.WarnLevel {
		t.Fatalf("expected warn level, got %s", zerolog.GlobalLevel())
	}

	logx.Configure("none")
	if zerolog.GlobalLevel() != zerolog.Disabled {
		t.Fatalf("expected disabled level, got %s", zerolog.GlobalLevel())
	}

	logx.Configure("bogus")
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info level, got %s", zerolog.GlobalLevel())
	}
}

func TestAddFile(t *testing.T) {
	logx.Configure("info")
	defer logx.Configure("info")

	dir := t.TempDir()
	c, err := logx.AddFile(dir)
	if err != nil {
		t.Fatal(err)
	}
	logx.Log.Info().Str("subset", "dev93").Msg("hello")
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	b, err := os.ReadFile(filepath.Join(dir, logx.LogFileName))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"subset":"dev93"`) {
		t.Errorf("log file missing record: %s", b)
	}
}

func TestAddFileMissingDir(t *testing.T) {
	if _, err := logx.AddFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
