// Package mockapi serves a stand-in for the remote REST API: jobs are
// accepted, report RUNNING for a configurable number of status checks and
// then finish with synthetic artifacts.
package mockapi

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const maxUploadSize = 64 << 20

type job struct {
	Endpoint string
	Checks   int
	Fail     bool
	Outputs  []outputFile
}

type outputFile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Server struct {
	// ChecksUntilDone is how many status checks answer RUNNING.
	ChecksUntilDone int
	// NewID mints tokens and artifact ids.
	NewID func() string
	// Artifact builds the bytes of one output file.
	Artifact func(endpoint, name string, inputs map[string][]byte, config map[string]any) []byte

	mu        sync.Mutex
	jobs      map[string]*job
	artifacts map[string][]byte
}

func NewServer(checksUntilDone int) *Server {
	return &Server{
		ChecksUntilDone: checksUntilDone,
		NewID:           uuid.NewString,
		Artifact:        defaultArtifact,
		jobs:            make(map[string]*job),
		artifacts:       make(map[string][]byte),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/launch/*", s.handleLaunch)
	r.Get("/retrieve/status/{token}", s.handleStatus)
	r.Get("/retrieve/data/{id}", s.handleData)
	return r
}

// Launches returns the number of accepted jobs.
func (s *Server) Launches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// POST /launch/<tool path>
func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"code": 400, "message": "invalid multipart body"})
		return
	}
	endpoint := chi.URLParam(r, "*")

	inputs := make(map[string][]byte)
	var config map[string]any
	for field, headers := range r.MultipartForm.File {
		f, err := headers[0].Open()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"code": 400, "message": err.Error()})
			return
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"code": 400, "message": err.Error()})
			return
		}
		if field == "config" {
			if err := json.Unmarshal(content, &config); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]any{"code": 400, "message": "config is not valid JSON"})
				return
			}
			continue
		}
		inputs[field] = content
	}

	fields := make([]string, 0, len(r.MultipartForm.Value))
	for field := range r.MultipartForm.Value {
		if strings.HasPrefix(field, "output") {
			fields = append(fields, field)
		}
	}
	if len(fields) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"code": 400, "message": "no output paths provided"})
		return
	}
	sort.Strings(fields)

	s.mu.Lock()
	token := s.NewID()
	j := &job{Endpoint: endpoint}
	if fail, ok := config["fail"].(bool); ok && fail {
		j.Fail = true
	}
	for _, field := range fields {
		name := r.MultipartForm.Value[field][0]
		id := s.NewID()
		s.artifacts[id] = s.Artifact(endpoint, name, inputs, config)
		j.Outputs = append(j.Outputs, outputFile{ID: id, Name: name})
	}
	s.jobs[token] = j
	s.mu.Unlock()

	log.Printf("[mockapi] -- accepted %s as %s", endpoint, token)
	w.Header().Set("Location", "/retrieve/status/"+token)
	writeJSON(w, http.StatusSeeOther, map[string]any{
		"code":    303,
		"state":   "RUNNING",
		"message": fmt.Sprintf("The requested tool has been successfully launched, please go to /retrieve/status/%s for checking job status.", token),
		"token":   token,
	})
}

// GET /retrieve/status/{token}
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	s.mu.Lock()
	j, ok := s.jobs[token]
	var snapshot job
	if ok {
		j.Checks++
		snapshot = *j
	}
	s.mu.Unlock()

	switch {
	case !ok:
		writeJSON(w, http.StatusNotFound, map[string]any{"code": 404, "message": "token not found"})
	case snapshot.Checks <= s.ChecksUntilDone:
		writeJSON(w, http.StatusAccepted, map[string]any{"code": 202, "state": "RUNNING", "message": "job is still running"})
	case snapshot.Fail:
		writeJSON(w, http.StatusInternalServerError, map[string]any{"code": 500, "state": "ERROR", "message": "tool execution failed"})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"code": 200, "state": "FINISHED", "output_files": snapshot.Outputs})
	}
}

// GET /retrieve/data/{id}
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	content, ok := s.artifacts[id]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"code": 404, "message": "file not found"})
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(content)
}

func defaultArtifact(endpoint, name string, inputs map[string][]byte, config map[string]any) []byte {
	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	fmt.Fprintf(&b, "REMARK %s -> %s\n", endpoint, name)
	for _, k := range keys {
		fmt.Fprintf(&b, "REMARK input %s (%d bytes)\n", k, len(inputs[k]))
	}
	return []byte(b.String())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
