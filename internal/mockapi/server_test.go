package mockapi

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
)

func launch(t *testing.T, srv *httptest.Server, fields map[string]string, config string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		_ = w.WriteField(k, v)
	}
	if config != "" {
		part, _ := w.CreateFormFile("config", "prop.json")
		_, _ = part.Write([]byte(config))
	}
	part, _ := w.CreateFormFile("input_pdb_path", "in.pdb")
	_, _ = part.Write([]byte("ATOM"))
	w.Close()

	client := srv.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	resp, err := client.Post(srv.URL+"/launch/biobb_model/model/fix_side_chain", w.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("launch failed: %v", err)
	}
	return resp
}

func TestJobLifecycle(t *testing.T) {
	s := NewServer(1)
	ids := []string{"tok", "out1"}
	s.NewID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	resp := launch(t, srv, map[string]string{"output_pdb_path": "fixed.pdb"}, `{"use_modeller":false}`)
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("launch status = %d", resp.StatusCode)
	}
	var launched struct {
		Token string `json:"token"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&launched)
	resp.Body.Close()
	if launched.Token != "tok" {
		t.Fatalf("token = %q", launched.Token)
	}

	wantCodes := []int{http.StatusAccepted, http.StatusOK}
	for i, want := range wantCodes {
		resp, err := http.Get(srv.URL + "/retrieve/status/tok")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Errorf("status check %d = %d, want %d", i+1, resp.StatusCode, want)
		}
	}

	resp, err := http.Get(srv.URL + "/retrieve/data/out1")
	if err != nil {
		t.Fatal(err)
	}
	content, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	want := "REMARK biobb_model/model/fix_side_chain -> fixed.pdb\nREMARK input input_pdb_path (4 bytes)\n"
	if string(content) != want {
		t.Errorf("artifact = %q, want %q", content, want)
	}
	if s.Launches() != 1 {
		t.Errorf("Launches() = %d", s.Launches())
	}
}

func TestLaunchRejections(t *testing.T) {
	srv := httptest.NewServer(NewServer(0).Router())
	defer srv.Close()

	tests := []struct {
		name   string
		fields map[string]string
		config string
	}{
		{name: "no outputs", fields: map[string]string{}},
		{name: "broken config", fields: map[string]string{"output_path": "x"}, config: "{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := launch(t, srv, tt.fields, tt.config)
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}

	resp, err := http.Get(srv.URL + "/retrieve/status/unknown")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown token status = %d", resp.StatusCode)
	}
}
