package workflow

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fe-dox/biobb-api-client/internal/data"
)

var (
	ErrNoSteps        = errors.New("workflow has no steps")
	ErrIncompleteStep = errors.New("step needs a name and an endpoint")
	ErrDuplicateStep  = errors.New("duplicate step name")
)

// Workflow is an ordered list of jobs; each step usually consumes files the
// previous one produced.
type Workflow struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

type Step struct {
	Name     string         `yaml:"name"`
	Endpoint string         `yaml:"endpoint"`
	Args     map[string]any `yaml:"args"`
}

func (s Step) Request() data.JobRequest {
	return data.NewJobRequest(s.Args)
}

// RequestIn resolves relative paths against dir, where earlier steps
// downloaded their outputs. A path only found in the working directory is
// kept as given. Output paths are names on the service and stay untouched.
func (s Step) RequestIn(dir string) data.JobRequest {
	if dir == "" || dir == "." {
		return s.Request()
	}
	args := make(map[string]any, len(s.Args))
	for key, value := range s.Args {
		if v, ok := value.(string); ok && !strings.HasPrefix(key, "output") && !filepath.IsAbs(v) {
			if _, err := os.Stat(filepath.Join(dir, v)); err == nil {
				value = filepath.Join(dir, v)
			}
		}
		args[key] = value
	}
	return data.NewJobRequest(args)
}

// ParseWorkflow parses YAML content into a Workflow.
func ParseWorkflow(content []byte) (*Workflow, error) {
	var wf Workflow
	if err := yaml.Unmarshal(content, &wf); err != nil {
		return nil, err
	}
	if err := wf.Validate(); err != nil {
		return nil, err
	}
	return &wf, nil
}

func LoadWorkflow(path string) (*Workflow, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseWorkflow(content)
}

func (wf *Workflow) Validate() error {
	if len(wf.Steps) == 0 {
		return ErrNoSteps
	}
	seen := make(map[string]bool, len(wf.Steps))
	for i, step := range wf.Steps {
		if step.Name == "" || step.Endpoint == "" {
			return fmt.Errorf("step %d: %w", i+1, ErrIncompleteStep)
		}
		if seen[step.Name] {
			return fmt.Errorf("step %d: %w: %s", i+1, ErrDuplicateStep, step.Name)
		}
		seen[step.Name] = true
	}
	return nil
}
