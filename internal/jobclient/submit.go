package jobclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/fe-dox/biobb-api-client/internal/data"
)

const configFileName = "prop.json"

type submitResponse struct {
	Token string `json:"token"`
}

// Submit launches a job and returns its token. Only 303 See Other counts as
// accepted; submissions are never retried.
func (c *Client) Submit(ctx context.Context, endpoint string, req data.JobRequest) (data.Token, error) {
	if err := validateInputs(req); err != nil {
		return "", err
	}
	launchUrl, err := c.endpointURL(endpoint)
	if err != nil {
		return "", err
	}
	body, contentType, err := encodeRequest(req)
	if err != nil {
		return "", err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, launchUrl, body)
	if err != nil {
		return "", err
	}
	request.Header.Set("Content-Type", contentType)
	request.Header.Add("User-Agent", c.UserAgent)
	response, err := c.client.Do(request)
	if err != nil {
		return "", err
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return "", err
	}
	log.Printf("[jobclient] -- %s answered %d: %s", endpoint, response.StatusCode, indentJSON(raw))
	if response.StatusCode != StatusAccepted {
		return "", &SubmissionError{StatusCode: response.StatusCode, Body: string(raw)}
	}

	var sr submitResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return "", fmt.Errorf("decoding launch response: %w", err)
	}
	if sr.Token == "" {
		return "", ErrNoToken
	}
	return data.Token(sr.Token), nil
}

func validateInputs(req data.JobRequest) error {
	paths := make([]string, 0, len(req.Inputs)+1)
	for _, path := range req.Inputs {
		paths = append(paths, path)
	}
	if req.Config == nil && req.ConfigFile != "" {
		paths = append(paths, req.ConfigFile)
	}
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInputNotReadable, path, err)
		}
		f.Close()
	}
	return nil
}

// encodeRequest writes file parts for inputs, plain fields for output paths
// and a "config" part holding the JSON properties.
func encodeRequest(req data.JobRequest) (io.Reader, string, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	for _, key := range sortedKeys(req.Inputs) {
		if err := addFile(w, key, req.Inputs[key]); err != nil {
			return nil, "", err
		}
	}
	for _, key := range sortedKeys(req.Outputs) {
		if err := w.WriteField(key, req.Outputs[key]); err != nil {
			return nil, "", err
		}
	}
	switch {
	case req.Config != nil:
		config, err := json.Marshal(req.Config)
		if err != nil {
			return nil, "", fmt.Errorf("encoding config: %w", err)
		}
		part, err := w.CreateFormFile("config", configFileName)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(config); err != nil {
			return nil, "", err
		}
	case req.ConfigFile != "":
		if err := addFile(w, "config", req.ConfigFile); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &b, w.FormDataContentType(), nil
}

func addFile(w *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInputNotReadable, path, err)
	}
	defer f.Close()
	part, err := w.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
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

func indentJSON(raw []byte) string {
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return string(raw)
	}
	return out.String()
}
