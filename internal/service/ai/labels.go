package ai

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Labels maps class indexes to human-readable names.
type Labels []string

// LoadLabels reads one label per line. Blank lines are kept so that indexes
// line up with the model output; a trailing newline is not a label.
func LoadLabels(path string) (Labels, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, LoaderError("read labels", err)
	}
	defer file.Close()

	var labels Labels
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		labels = append(labels, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, ModelDataError("read labels", fmt.Errorf("%s: %w", path, err))
	}
	if len(labels) == 0 {
		return nil, ModelDataError("read labels", fmt.Errorf("%s is empty", path))
	}
	return labels, nil
}

// Lookup returns the label of index, or "unknown_<index>".
func (l Labels) Lookup(index int) string {
	if index >= 0 && index < len(l) && l[index] != "" {
		return l[index]
	}
	return fmt.Sprintf("unknown_%d", index)
}
