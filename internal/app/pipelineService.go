package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fe-dox/biobb-api-client/internal/data"
	"github.com/fe-dox/biobb-api-client/internal/history"
	"github.com/fe-dox/biobb-api-client/internal/jobclient"
	"github.com/fe-dox/biobb-api-client/internal/workflow"
)

var (
	ErrJobIsStillBeingProcessed = errors.New("job is still being processed")
	ErrJobNotFound              = errors.New("job not found")
	ErrJobFailed                = errors.New("job failed")
)

type JobRunner interface {
	Submit(ctx context.Context, endpoint string, req data.JobRequest) (data.Token, error)
	Wait(ctx context.Context, token data.Token) (*data.Result, jobclient.PollResult, error)
	Retrieve(ctx context.Context, result *data.Result, dir string) (jobclient.RetrieveReport, error)
}

type Options struct {
	OutputDir    string
	ForceRefresh bool
	Selection    string
}

type StepOutcome struct {
	Step    string
	Token   data.Token
	Result  *data.Result
	Report  jobclient.RetrieveReport
	Elapsed time.Duration
	Cached  bool
	Resumed bool
}

// PipelineService runs workflow steps one after another. Cache and history
// are optional.
type PipelineService struct {
	client  JobRunner
	cache   data.ResultsCache
	history *history.Store
}

func NewPipelineService(client JobRunner, cache data.ResultsCache, store *history.Store) *PipelineService {
	return &PipelineService{client: client, cache: cache, history: store}
}

func (ps *PipelineService) GetJob(jobHash string) (data.Record, error) {
	if ps.cache == nil {
		return data.Record{}, ErrJobNotFound
	}
	record, err := ps.cache.Get(jobHash)
	if err != nil {
		return data.Record{}, err
	}
	switch record.Status {
	case data.JobNotFound:
		return data.Record{}, ErrJobNotFound
	case data.JobProcessing:
		return record, ErrJobIsStillBeingProcessed
	}
	return record, nil
}

// RunWorkflow runs the selected steps in order and stops at the first
// failure, since later steps consume earlier outputs.
func (ps *PipelineService) RunWorkflow(ctx context.Context, wf *workflow.Workflow, options Options) ([]StepOutcome, error) {
	ranges, err := workflow.SelectSteps(options.Selection, len(wf.Steps))
	if err != nil {
		return nil, err
	}
	steps := wf.Pick(ranges)
	outcomes := make([]StepOutcome, 0, len(steps))
	for i, step := range steps {
		log.Printf("[pipeline] -- step %d/%d: %s (%s)", i+1, len(steps), step.Name, step.Endpoint)
		outcome, err := ps.RunStep(ctx, wf.Name, step, options)
		if err != nil {
			return outcomes, fmt.Errorf("step %s: %w", step.Name, err)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

// RunStep submits one step, or resumes/skips it using the results cache.
func (ps *PipelineService) RunStep(ctx context.Context, workflowName string, step workflow.Step, options Options) (StepOutcome, error) {
	outcome := StepOutcome{Step: step.Name}
	req := step.RequestIn(options.OutputDir)
	jobHash, err := data.JobHash(step.Endpoint, req)
	if err != nil {
		return outcome, fmt.Errorf("%w: %v", jobclient.ErrInputNotReadable, err)
	}

	record := data.Record{Status: data.JobNotFound}
	if ps.cache != nil {
		record, err = ps.cache.Get(jobHash)
		if err != nil {
			log.Printf("[pipeline] -- cache lookup for %s failed: %v", step.Name, err)
			record = data.Record{Status: data.JobNotFound}
		}
	}

	if record.Status == data.JobDone && !options.ForceRefresh {
		log.Printf("[pipeline] -- %s already done as %s, skipping", step.Name, record.Token)
		outcome.Token = record.Token
		outcome.Result = record.Result
		outcome.Cached = true
		if missing := missingOutputs(record.Result, options.OutputDir); missing != nil {
			report, err := ps.client.Retrieve(ctx, missing, options.OutputDir)
			outcome.Report = report
			if err != nil {
				return outcome, err
			}
		}
		return outcome, nil
	}

	if record.Status == data.JobProcessing && record.Token != "" && !options.ForceRefresh {
		log.Printf("[pipeline] -- resuming %s with token %s", step.Name, record.Token)
		outcome.Token = record.Token
		outcome.Resumed = true
	} else {
		token, err := ps.client.Submit(ctx, step.Endpoint, req)
		if err != nil {
			ps.record(workflowName, step, jobHash, outcome, err)
			return outcome, err
		}
		outcome.Token = token
		if ps.cache != nil {
			if err := ps.cache.SetStatusProcessing(jobHash, token); err != nil {
				log.Printf("[pipeline] -- caching token for %s failed: %v", step.Name, err)
			}
		}
	}

	result, poll, err := ps.client.Wait(ctx, outcome.Token)
	outcome.Elapsed = poll.Elapsed
	if err != nil {
		var jf *jobclient.JobFailure
		if errors.As(err, &jf) {
			ps.saveFailure(jobHash, outcome.Token, jf.Body)
			err = fmt.Errorf("%w: %w", ErrJobFailed, err)
		}
		ps.record(workflowName, step, jobHash, outcome, err)
		return outcome, err
	}
	outcome.Result = result

	report, err := ps.client.Retrieve(ctx, result, options.OutputDir)
	outcome.Report = report
	if err != nil {
		ps.record(workflowName, step, jobHash, outcome, err)
		return outcome, err
	}
	if ps.cache != nil {
		if err := ps.cache.SaveResult(jobHash, outcome.Token, *result); err != nil {
			log.Printf("[pipeline] -- caching result for %s failed: %v", step.Name, err)
		}
	}
	ps.record(workflowName, step, jobHash, outcome, nil)
	log.Printf("[pipeline] -- %s: %s", step.Name, report)
	return outcome, nil
}

func (ps *PipelineService) saveFailure(jobHash string, token data.Token, reason string) {
	if ps.cache == nil {
		return
	}
	if err := ps.cache.SaveFailure(jobHash, token, reason); err != nil {
		log.Printf("[pipeline] -- caching failure for %s failed: %v", token, err)
	}
}

func (ps *PipelineService) record(workflowName string, step workflow.Step, jobHash string, outcome StepOutcome, err error) {
	if ps.history == nil {
		return
	}
	run := history.Run{
		Workflow: workflowName,
		Step:     step.Name,
		Endpoint: step.Endpoint,
		JobHash:  jobHash,
		Token:    string(outcome.Token),
		Status:   data.JobDone.String(),
		Elapsed:  outcome.Elapsed,
		Outputs:  len(outcome.Report.Written),
	}
	if err != nil {
		run.Status = data.JobFailed.String()
		run.Error = err.Error()
	}
	if _, err := ps.history.Record(run); err != nil {
		log.Printf("[pipeline] -- recording history for %s failed: %v", step.Name, err)
	}
}

func missingOutputs(result *data.Result, dir string) *data.Result {
	if result == nil {
		return nil
	}
	var missing []data.OutputFile
	for _, out := range result.Outputs {
		if _, err := os.Stat(filepath.Join(dir, out.Name)); err != nil {
			missing = append(missing, out)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &data.Result{Outputs: missing}
}
