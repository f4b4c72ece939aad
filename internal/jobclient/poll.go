package jobclient

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/fe-dox/biobb-api-client/internal/data"
)

// Tier applies Interval while the elapsed wait is below Until. A zero Until
// never ends.
type Tier struct {
	Until    time.Duration
	Interval time.Duration
}

type Schedule []Tier

// DefaultSchedule checks every second for the first ten seconds, every ten
// seconds up to a minute and every minute after that.
func DefaultSchedule() Schedule {
	return Schedule{
		{Until: 10 * time.Second, Interval: time.Second},
		{Until: 60 * time.Second, Interval: 10 * time.Second},
		{Interval: 60 * time.Second},
	}
}

// Next returns the wait before the next status check given the wait so far.
func (s Schedule) Next(elapsed time.Duration) time.Duration {
	if len(s) == 0 {
		return time.Second
	}
	for _, tier := range s {
		if tier.Until == 0 || elapsed < tier.Until {
			return tier.Interval
		}
	}
	return s[len(s)-1].Interval
}

// PollPolicy bounds Poll. Zero fields are unbounded.
type PollPolicy struct {
	Timeout            time.Duration
	MaxChecks          int
	MaxTransportErrors int
}

type PollResult struct {
	Status          data.JobStatus
	Elapsed         time.Duration
	Checks          int
	TransportErrors int
}

// Poll blocks until the job's status endpoint answers 200 or 500. Any other
// answer, including a failed request, counts as still running.
func (c *Client) Poll(ctx context.Context, token data.Token) (PollResult, error) {
	var result PollResult
	statusUrl, err := c.statusURL(string(token))
	if err != nil {
		return result, err
	}
	schedule := c.Schedule
	if schedule == nil {
		schedule = DefaultSchedule()
	}
	consecutive := 0
	for {
		wait := schedule.Next(result.Elapsed)
		if err := c.Sleep(ctx, wait); err != nil {
			return result, err
		}
		result.Elapsed += wait
		result.Checks++

		code, err := c.statusCode(ctx, statusUrl)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.TransportErrors++
			consecutive++
			log.Printf("[jobclient] -- status check %d for %s failed: %v", result.Checks, token, err)
			if c.Policy.MaxTransportErrors > 0 && consecutive >= c.Policy.MaxTransportErrors {
				return result, fmt.Errorf("%w after %d attempts: %v", ErrServiceUnreachable, consecutive, err)
			}
		} else {
			consecutive = 0
			switch code {
			case StatusSucceeded:
				result.Status = data.JobDone
				return result, nil
			case StatusFailed:
				result.Status = data.JobFailed
				return result, nil
			}
		}

		result.Status = data.JobProcessing
		if c.Policy.Timeout > 0 && result.Elapsed >= c.Policy.Timeout {
			return result, fmt.Errorf("%w: %s still running after %s", ErrPollTimeout, token, result.Elapsed)
		}
		if c.Policy.MaxChecks > 0 && result.Checks >= c.Policy.MaxChecks {
			return result, fmt.Errorf("%w: %s still running after %d checks", ErrPollTimeout, token, result.Checks)
		}
	}
}

func (c *Client) statusCode(ctx context.Context, statusUrl string) (int, error) {
	response, err := c.get(ctx, statusUrl)
	if err != nil {
		return 0, err
	}
	defer response.Body.Close()
	_, _ = io.Copy(io.Discard, response.Body)
	return response.StatusCode, nil
}
