package jobclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/fe-dox/biobb-api-client/internal/data"
)

// Fetch reads the job status once. A succeeded job yields its output
// descriptors in the order the service listed them.
func (c *Client) Fetch(ctx context.Context, token data.Token) (*data.Result, error) {
	result, _, err := c.fetch(ctx, token)
	return result, err
}

// fetch also returns the status body as the service sent it.
func (c *Client) fetch(ctx context.Context, token data.Token) (*data.Result, []byte, error) {
	statusUrl, err := c.statusURL(string(token))
	if err != nil {
		return nil, nil, err
	}
	response, err := c.get(ctx, statusUrl)
	if err != nil {
		return nil, nil, err
	}
	defer response.Body.Close()
	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, nil, err
	}

	switch response.StatusCode {
	case StatusSucceeded:
		var result data.Result
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, raw, fmt.Errorf("decoding status of %s: %w", token, err)
		}
		return &result, raw, nil
	case StatusFailed:
		return nil, raw, &JobFailure{Token: string(token), StatusCode: response.StatusCode, Body: string(raw)}
	default:
		return nil, raw, fmt.Errorf("%w: %s answered %d", ErrJobNotFinished, token, response.StatusCode)
	}
}

// Wait polls until the job is terminal and then fetches its result.
func (c *Client) Wait(ctx context.Context, token data.Token) (*data.Result, PollResult, error) {
	poll, err := c.Poll(ctx, token)
	log.Printf("[jobclient] -- total elapsed time for %s: %s (%d checks)", token, poll.Elapsed, poll.Checks)
	if err != nil {
		return nil, poll, err
	}
	result, raw, err := c.fetch(ctx, token)
	if raw != nil {
		log.Printf("[jobclient] -- %s status response: %s", token, indentJSON(raw))
	}
	if err != nil {
		return nil, poll, err
	}
	return result, poll, nil
}
