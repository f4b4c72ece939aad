package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidArgument = errors.New("argument must look like key=value")

// parseArgs turns "key=value" words into launch arguments. A value that is a
// JSON object becomes the job config.
func parseArgs(words []string) (map[string]any, error) {
	args := make(map[string]any, len(words))
	for _, word := range words {
		key, value, ok := strings.Cut(word, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidArgument, word)
		}
		if strings.HasPrefix(strings.TrimSpace(value), "{") {
			var config map[string]any
			if err := json.Unmarshal([]byte(value), &config); err != nil {
				return nil, fmt.Errorf("%s: invalid JSON: %w", key, err)
			}
			args[key] = config
			continue
		}
		args[key] = value
	}
	return args, nil
}
