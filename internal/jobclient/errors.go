package jobclient

import (
	"errors"
	"fmt"
)

var (
	ErrInputNotReadable   = errors.New("input file is not readable")
	ErrNoToken            = errors.New("accepted response carries no token")
	ErrJobNotFinished     = errors.New("job has not reached a terminal state")
	ErrPollTimeout        = errors.New("job did not finish within the poll policy")
	ErrServiceUnreachable = errors.New("status endpoint unreachable")
)

// SubmissionError is returned when the launch endpoint answers with anything
// other than 303 See Other.
type SubmissionError struct {
	StatusCode int
	Body       string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission rejected (status %d): %s", e.StatusCode, e.Body)
}

// JobFailure carries the service's diagnostic payload for a failed job.
type JobFailure struct {
	Token      string
	StatusCode int
	Body       string
}

func (e *JobFailure) Error() string {
	return fmt.Sprintf("job %s failed (status %d): %s", e.Token, e.StatusCode, e.Body)
}

type DownloadError struct {
	ID         string
	Name       string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("download of %s (%s) failed: %v", e.Name, e.ID, e.Err)
	}
	return fmt.Sprintf("download of %s (%s) failed with status %d", e.Name, e.ID, e.StatusCode)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}
