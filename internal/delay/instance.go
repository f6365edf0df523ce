package delay

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ReadAgentCount reads the agent population from a flatland instance header.
// The count is the last whitespace-separated field of the second line.
func ReadAgentCount(r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	for i := 0; i < 2; i++ {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return 0, err
			}
			return 0, fmt.Errorf("instance header too short: missing line %d", i+1)
		}
	}
	fields := strings.Fields(scanner.Text())
	if len(fields) == 0 {
		return 0, fmt.Errorf("instance header line 2 is empty")
	}
	last := strings.TrimSuffix(fields[len(fields)-1], ".")
	n, err := strconv.Atoi(last)
	if err != nil {
		return 0, fmt.Errorf("instance header agent count %q: %w", last, err)
	}
	if n < 1 {
		return 0, fmt.Errorf("instance header declares %d agents", n)
	}
	return n, nil
}

// AgentCountFromFiles returns the agent count of the first path whose second line
// ends in a positive integer. Any file qualifies, so a program file listed before the
// instance is taken for the instance when its line 2 happens to end in a number.
// Standard input ("-") is skipped since it is consumed by the engine.
func AgentCountFromFiles(paths []string) (int, string, error) {
	var lastErr error
	for _, path := range paths {
		if path == "-" {
			continue
		}
		f, err := os.Open(path)
		if err != nil {
			lastErr = err
			continue
		}
		n, err := ReadAgentCount(f)
		f.Close()
		if err == nil {
			return n, path, nil
		}
		lastErr = fmt.Errorf("%s: %w", path, err)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no instance file given")
	}
	return 0, "", lastErr
}
