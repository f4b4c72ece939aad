package app

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fe-dox/biobb-api-client/internal/data"
	"github.com/fe-dox/biobb-api-client/internal/history"
	"github.com/fe-dox/biobb-api-client/internal/jobclient"
	"github.com/fe-dox/biobb-api-client/internal/mockapi"
	"github.com/fe-dox/biobb-api-client/internal/workflow"
)

type memCache struct {
	mu      sync.Mutex
	records map[string]data.Record
}

func newMemCache() *memCache {
	return &memCache{records: map[string]data.Record{}}
}

func (m *memCache) Get(key string) (data.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[key]
	if !ok {
		return data.Record{Status: data.JobNotFound}, nil
	}
	return record, nil
}

func (m *memCache) GetStatus(key string) (data.JobStatus, error) {
	record, err := m.Get(key)
	return record.Status, err
}

func (m *memCache) SetStatusProcessing(key string, token data.Token) error {
	return m.put(key, data.Record{Status: data.JobProcessing, Token: token})
}

func (m *memCache) SaveResult(key string, token data.Token, value data.Result) error {
	return m.put(key, data.Record{Status: data.JobDone, Token: token, Result: &value})
}

func (m *memCache) SaveFailure(key string, token data.Token, reason string) error {
	return m.put(key, data.Record{Status: data.JobFailed, Token: token, Error: reason})
}

func (m *memCache) put(key string, record data.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key] = record
	return nil
}

type fixture struct {
	mock    *mockapi.Server
	client  *jobclient.Client
	cache   *memCache
	store   *history.Store
	service *PipelineService
	dir     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mock := mockapi.NewServer(2)
	srv := httptest.NewServer(mock.Router())
	t.Cleanup(srv.Close)

	client := jobclient.NewClient(srv.URL, "pipeline-test", 5*time.Second)
	client.Sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }

	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("history.Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cache := newMemCache()
	return &fixture{
		mock:    mock,
		client:  client,
		cache:   cache,
		store:   store,
		service: NewPipelineService(client, cache, store),
		dir:     t.TempDir(),
	}
}

func setupWorkflow() *workflow.Workflow {
	return &workflow.Workflow{
		Name: "lysozyme",
		Steps: []workflow.Step{
			{
				Name:     "fetch",
				Endpoint: "launch/biobb_io/api/pdb",
				Args: map[string]any{
					"config":          map[string]any{"pdb_code": "1AKI"},
					"output_pdb_path": "1AKI.pdb",
				},
			},
			{
				Name:     "fix",
				Endpoint: "launch/biobb_model/model/fix_side_chain",
				Args: map[string]any{
					"input_pdb_path":  "1AKI.pdb",
					"output_pdb_path": "1AKI_fixed.pdb",
				},
			},
		},
	}
}

func TestRunWorkflow(t *testing.T) {
	f := newFixture(t)
	wf := setupWorkflow()
	ctx := context.Background()

	outcomes, err := f.service.RunWorkflow(ctx, wf, Options{OutputDir: f.dir})
	if err != nil {
		t.Fatalf("RunWorkflow() error = %v", err)
	}
	if len(outcomes) != 2 || f.mock.Launches() != 2 {
		t.Fatalf("RunWorkflow() ran %d steps, %d launches", len(outcomes), f.mock.Launches())
	}
	for _, name := range []string{"1AKI.pdb", "1AKI_fixed.pdb"} {
		if _, err := os.Stat(filepath.Join(f.dir, name)); err != nil {
			t.Errorf("%s not retrieved: %v", name, err)
		}
	}
	if outcomes[1].Elapsed != 3*time.Second {
		t.Errorf("fix elapsed = %v, want 3s", outcomes[1].Elapsed)
	}

	again, err := f.service.RunWorkflow(ctx, wf, Options{OutputDir: f.dir})
	if err != nil {
		t.Fatalf("second RunWorkflow() error = %v", err)
	}
	for _, o := range again {
		if !o.Cached {
			t.Errorf("step %s was not served from cache", o.Step)
		}
	}
	if f.mock.Launches() != 2 {
		t.Errorf("cached rerun launched jobs: %d", f.mock.Launches())
	}

	if err := os.Remove(filepath.Join(f.dir, "1AKI_fixed.pdb")); err != nil {
		t.Fatal(err)
	}
	if _, err := f.service.RunWorkflow(ctx, wf, Options{OutputDir: f.dir, Selection: "2"}); err != nil {
		t.Fatalf("RunWorkflow(2) error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.dir, "1AKI_fixed.pdb")); err != nil {
		t.Errorf("missing cached output was not retrieved again: %v", err)
	}

	forced, err := f.service.RunWorkflow(ctx, wf, Options{OutputDir: f.dir, Selection: "1", ForceRefresh: true})
	if err != nil || len(forced) != 1 || forced[0].Cached {
		t.Fatalf("forced RunWorkflow() = %+v, %v", forced, err)
	}
	if f.mock.Launches() != 3 {
		t.Errorf("forced rerun launches = %d, want 3", f.mock.Launches())
	}

	runs, err := f.store.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(runs) != 3 {
		t.Errorf("history has %d runs, want 3", len(runs))
	}
}

func TestRunStepResumesToken(t *testing.T) {
	f := newFixture(t)
	step := setupWorkflow().Steps[0]
	ctx := context.Background()

	req := step.RequestIn(f.dir)
	token, err := f.client.Submit(ctx, step.Endpoint, req)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	jobHash, _ := data.JobHash(step.Endpoint, req)
	_ = f.cache.SetStatusProcessing(jobHash, token)

	if _, err := f.service.GetJob(jobHash); !errors.Is(err, ErrJobIsStillBeingProcessed) {
		t.Errorf("GetJob() error = %v", err)
	}

	outcome, err := f.service.RunStep(ctx, "lysozyme", step, Options{OutputDir: f.dir})
	if err != nil {
		t.Fatalf("RunStep() error = %v", err)
	}
	if !outcome.Resumed || outcome.Token != token {
		t.Errorf("RunStep() = %+v, want resumed %s", outcome, token)
	}
	if f.mock.Launches() != 1 {
		t.Errorf("resume resubmitted: %d launches", f.mock.Launches())
	}
	record, err := f.service.GetJob(jobHash)
	if err != nil || record.Status != data.JobDone {
		t.Errorf("GetJob() = %+v, %v", record, err)
	}
	if _, err := f.service.GetJob("unknown"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("GetJob(unknown) error = %v", err)
	}
}

func TestRunWorkflowStopsOnFailure(t *testing.T) {
	f := newFixture(t)
	wf := setupWorkflow()
	wf.Steps[0].Args["config"] = map[string]any{"pdb_code": "1AKI", "fail": true}

	outcomes, err := f.service.RunWorkflow(context.Background(), wf, Options{OutputDir: f.dir})
	if !errors.Is(err, ErrJobFailed) {
		t.Fatalf("RunWorkflow() error = %v, want ErrJobFailed", err)
	}
	var jf *jobclient.JobFailure
	if !errors.As(err, &jf) {
		t.Errorf("RunWorkflow() error does not carry JobFailure: %v", err)
	}
	if len(outcomes) != 0 || f.mock.Launches() != 1 {
		t.Errorf("RunWorkflow() continued after failure: %d outcomes, %d launches", len(outcomes), f.mock.Launches())
	}

	runs, _ := f.store.List(0)
	if len(runs) != 1 || runs[0].Status != "failed" {
		t.Errorf("history = %+v", runs)
	}
}

func TestRunWorkflowBadSelection(t *testing.T) {
	f := newFixture(t)
	if _, err := f.service.RunWorkflow(context.Background(), setupWorkflow(), Options{Selection: "3"}); !errors.Is(err, workflow.ErrSelectedStepsDoNotExist) {
		t.Errorf("RunWorkflow() error = %v", err)
	}
}
