package data

import (
	"os"
	"sort"
	"strings"
)

// Token identifies a submitted job until it reaches a terminal state.
type Token string

type JobRequest struct {
	Inputs     map[string]string
	Outputs    map[string]string
	Config     map[string]any
	ConfigFile string
}

// NewJobRequest sorts flat launch arguments into a JobRequest. Keys prefixed
// with "input" are files to upload, keys prefixed with "output" are
// destination paths, other strings naming an existing file are uploaded too
// and a map value becomes the JSON config. With several maps the one under
// "config" wins, otherwise the first in key order.
func NewJobRequest(args map[string]any) JobRequest {
	req := JobRequest{
		Inputs:  map[string]string{},
		Outputs: map[string]string{},
	}
	keys := make([]string, 0, len(args))
	for key := range args {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := args[key]
		switch v := value.(type) {
		case string:
			switch {
			case strings.HasPrefix(key, "input"):
				req.Inputs[key] = v
			case strings.HasPrefix(key, "output"):
				req.Outputs[key] = v
			case key == "config" && isFile(v):
				req.ConfigFile = v
			case isFile(v):
				req.Inputs[key] = v
			}
		case map[string]any:
			if req.Config == nil || key == "config" {
				req.Config = v
			}
		}
	}
	return req
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

type OutputFile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Result struct {
	Outputs []OutputFile `json:"output_files"`
}

type JobStatus int

const (
	JobNotFound JobStatus = iota
	JobProcessing
	JobDone
	JobFailed
)

func (s JobStatus) String() string {
	switch s {
	case JobProcessing:
		return "processing"
	case JobDone:
		return "done"
	case JobFailed:
		return "failed"
	default:
		return "not found"
	}
}

// Record is what the results cache keeps for one request hash.
type Record struct {
	Status JobStatus `json:"status"`
	Token  Token     `json:"token,omitempty"`
	Result *Result   `json:"result,omitempty"`
	Error  string    `json:"error,omitempty"`
}
