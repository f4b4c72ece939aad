package jobclient

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

const (
	StatusSucceeded = http.StatusOK
	StatusFailed    = http.StatusInternalServerError
	StatusAccepted  = http.StatusSeeOther
)

// Client talks to one REST API deployment. It is meant for sequential use:
// each job is awaited before the next one is submitted.
type Client struct {
	BaseURL   string
	UserAgent string
	Schedule  Schedule
	Policy    PollPolicy
	// Sleep blocks between status checks; tests replace it.
	Sleep  func(ctx context.Context, d time.Duration) error
	client http.Client
	// Artifacts such as trajectories can take far longer than a status
	// check, so downloads are only bounded by their context.
	download http.Client
}

func NewClient(baseURL string, userAgent string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:   baseURL,
		UserAgent: userAgent,
		Schedule:  DefaultSchedule(),
		Sleep:     sleepContext,
		client: http.Client{
			Timeout: timeout,
			// The launch endpoint answers 303 with the token in the body,
			// following it would lose the token.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) > 0 && via[0].Method == http.MethodPost {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		download: http.Client{},
	}
}

func (c *Client) endpointURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	if u.IsAbs() {
		return endpoint, nil
	}
	return url.JoinPath(c.BaseURL, endpoint)
}

func (c *Client) statusURL(token string) (string, error) {
	return url.JoinPath(c.BaseURL, "retrieve", "status", token)
}

func (c *Client) dataURL(id string) (string, error) {
	return url.JoinPath(c.BaseURL, "retrieve", "data", id)
}

func (c *Client) get(ctx context.Context, target string) (*http.Response, error) {
	return c.do(ctx, &c.client, target)
}

func (c *Client) getData(ctx context.Context, target string) (*http.Response, error) {
	return c.do(ctx, &c.download, target)
}

func (c *Client) do(ctx context.Context, hc *http.Client, target string) (*http.Response, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	request.Header.Add("User-Agent", c.UserAgent)
	return hc.Do(request)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
