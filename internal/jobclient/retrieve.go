package jobclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/fe-dox/biobb-api-client/internal/data"
)

const NothingToRetrieveMessage = "No files provided"

type RetrieveReport struct {
	NothingToRetrieve bool
	Written           []string
	Failed            []*DownloadError
}

func (r RetrieveReport) String() string {
	if r.NothingToRetrieve {
		return NothingToRetrieveMessage
	}
	return fmt.Sprintf("retrieved %d files, %d failed", len(r.Written), len(r.Failed))
}

// Retrieve downloads every output of result into dir. A failed download does
// not stop the others; all failures are joined into the returned error.
func (c *Client) Retrieve(ctx context.Context, result *data.Result, dir string) (RetrieveReport, error) {
	var report RetrieveReport
	if result == nil || len(result.Outputs) == 0 {
		report.NothingToRetrieve = true
		log.Printf("[jobclient] -- %s", NothingToRetrieveMessage)
		return report, nil
	}
	var errs []error
	for _, out := range result.Outputs {
		path, err := c.Download(ctx, out, dir)
		if err != nil {
			var de *DownloadError
			if !errors.As(err, &de) {
				de = &DownloadError{ID: out.ID, Name: out.Name, Err: err}
			}
			log.Printf("[jobclient] -- %v", de)
			report.Failed = append(report.Failed, de)
			errs = append(errs, de)
			continue
		}
		report.Written = append(report.Written, path)
	}
	return report, errors.Join(errs...)
}

// Download writes one artifact verbatim to dir/<name>.
func (c *Client) Download(ctx context.Context, out data.OutputFile, dir string) (string, error) {
	if !filepath.IsLocal(out.Name) {
		return "", &DownloadError{ID: out.ID, Name: out.Name, Err: fmt.Errorf("unsafe file name %q", out.Name)}
	}
	dataUrl, err := c.dataURL(out.ID)
	if err != nil {
		return "", &DownloadError{ID: out.ID, Name: out.Name, Err: err}
	}
	response, err := c.getData(ctx, dataUrl)
	if err != nil {
		return "", &DownloadError{ID: out.ID, Name: out.Name, Err: err}
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return "", &DownloadError{ID: out.ID, Name: out.Name, StatusCode: response.StatusCode}
	}

	path := filepath.Join(dir, out.Name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", &DownloadError{ID: out.ID, Name: out.Name, Err: err}
	}
	f, err := os.Create(path)
	if err != nil {
		return "", &DownloadError{ID: out.ID, Name: out.Name, Err: err}
	}
	if _, err := io.Copy(f, response.Body); err != nil {
		f.Close()
		os.Remove(path)
		return "", &DownloadError{ID: out.ID, Name: out.Name, Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", &DownloadError{ID: out.ID, Name: out.Name, Err: err}
	}
	return path, nil
}

// Run submits a job, waits for it and downloads its outputs into dir.
func (c *Client) Run(ctx context.Context, endpoint string, req data.JobRequest, dir string) (*data.Result, RetrieveReport, error) {
	token, err := c.Submit(ctx, endpoint, req)
	if err != nil {
		return nil, RetrieveReport{}, err
	}
	result, _, err := c.Wait(ctx, token)
	if err != nil {
		return nil, RetrieveReport{}, err
	}
	report, err := c.Retrieve(ctx, result, dir)
	return result, report, err
}
