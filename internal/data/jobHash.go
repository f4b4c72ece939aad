package data

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
)

// JobHash keys a request in the results cache. Input files are hashed by
// content so an edited input invalidates the cached job.
func JobHash(endpoint string, req JobRequest) (string, error) {
	h := md5.New()
	fmt.Fprintf(h, "%s\n", endpoint)
	for _, key := range sortedKeys(req.Inputs) {
		fmt.Fprintf(h, "in %s %s\n", key, req.Inputs[key])
		if err := hashFile(h, req.Inputs[key]); err != nil {
			return "", err
		}
	}
	for _, key := range sortedKeys(req.Outputs) {
		fmt.Fprintf(h, "out %s %s\n", key, req.Outputs[key])
	}
	if req.Config != nil {
		// encoding/json sorts map keys, so this is stable.
		config, err := json.Marshal(req.Config)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(h, "config %s\n", config)
	}
	if req.ConfigFile != "" {
		fmt.Fprintf(h, "configfile %s\n", req.ConfigFile)
		if err := hashFile(h, req.ConfigFile); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

func hashFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
