// Package checkpoint locates epoch-indexed checkpoints inside a model
// directory. A checkpoint is a directory or file named model.epoch-<N>.
package checkpoint

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ErrNotFound is returned when no checkpoint matches the request.
var ErrNotFound = errors.New("checkpoint not found")

// Latest selects the newest checkpoint.
const Latest = -1

const prefix = "model.epoch-"

// Name returns the checkpoint entry name for an epoch.
func Name(epoch int) string {
	return prefix + strconv.Itoa(epoch)
}

// Epochs lists the epochs saved in dir in ascending order.
func Epochs(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint dir: %w", err)
	}
	var epochs []int
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(name, prefix))
		if err != nil {
			continue
		}
		epochs = append(epochs, n)
	}
	sort.Ints(epochs)
	return epochs, nil
}

// Resolve returns the path and epoch of the checkpoint to restore.
// epoch Latest (or any negative value) picks the highest saved epoch.
func Resolve(dir string, epoch int) (string, int, error) {
	if epoch >= 0 {
		p := filepath.Join(dir, Name(epoch))
		if _, err := os.Stat(p); err != nil {
			return "", 0, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return p, epoch, nil
	}
	epochs, err := Epochs(dir)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %s: %v", ErrNotFound, dir, err)
	}
	if len(epochs) == 0 {
		return "", 0, fmt.Errorf("%w: no %s* in %s", ErrNotFound, prefix, dir)
	}
	last := epochs[len(epochs)-1]
	return filepath.Join(dir, Name(last)), last, nil
}
