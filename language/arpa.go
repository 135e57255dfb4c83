package language

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ARPAFileName is the model file expected inside an LM checkpoint.
const ARPAFileName = "lm.arpa"

// LoadARPA reads a language model in ARPA format.
// Log probabilities in ARPA files are base-10; they are converted to natural log.
func LoadARPA(r io.Reader) (*NGramModel, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	model := NewNGramModel(1)

	order := 0 // current section, 0 = header
	inData := false
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == `\data\`:
			inData = true
			continue
		case line == `\end\`:
			if !inData {
				return nil, fmt.Errorf("missing \\data\\ section")
			}
			return model, nil
		case strings.HasPrefix(line, `\`) && strings.HasSuffix(line, "-grams:"):
			n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(line, `\`), "-grams:"))
			if err != nil || n < 1 {
				return nil, fmt.Errorf("line %d: bad section header %q", lineNum, line)
			}
			order = n
			continue
		}
		if order == 0 {
			if inData && strings.HasPrefix(line, "ngram ") {
				if err := parseCount(model, line); err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNum, err)
				}
			}
			continue
		}
		if err := parseNGramLine(model, order, line); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !inData {
		return nil, fmt.Errorf("missing \\data\\ section")
	}
	return model, nil
}

// LoadFile reads an ARPA model from a checkpoint directory or file path.
func LoadFile(path string) (*NGramModel, error) {
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		path = filepath.Join(path, ARPAFileName)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open language model: %w", err)
	}
	defer f.Close()
	m, err := LoadARPA(f)
	if err != nil {
		return nil, fmt.Errorf("load language model %s: %w", path, err)
	}
	return m, nil
}

func parseCount(model *NGramModel, line string) error {
	parts := strings.SplitN(strings.TrimPrefix(line, "ngram "), "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("bad count line %q", line)
	}
	n, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return fmt.Errorf("bad count line %q: %w", line, err)
	}
	if n > model.Order {
		model.Order = n
	}
	return nil
}

func parseNGramLine(model *NGramModel, order int, line string) error {
	fields := strings.Fields(line)
	if len(fields) < order+1 {
		return fmt.Errorf("too few fields for %d-gram: %q", order, line)
	}
	logProb, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return fmt.Errorf("parse log prob: %w", err)
	}
	e := ngramEntry{LogProb: logProb * math.Ln10}
	if len(fields) > order+1 {
		bo, err := strconv.ParseFloat(fields[order+1], 64)
		if err != nil {
			return fmt.Errorf("parse backoff: %w", err)
		}
		e.LogBackoff = bo * math.Ln10
	}
	model.set(fields[1:order+1], e)
	return nil
}
