package data

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestNewJobRequest(t *testing.T) {
	dir := t.TempDir()
	pdb := writeFile(t, dir, "1AKI.pdb", "ATOM")
	props := writeFile(t, dir, "prop.json", "{}")
	top := writeFile(t, dir, "top.zip", "zip")

	tests := []struct {
		name string
		args map[string]any
		want JobRequest
	}{
		{
			name: "config as map",
			args: map[string]any{
				"config":          map[string]any{"pdb_code": "1AKI"},
				"output_pdb_path": "1AKI.pdb",
			},
			want: JobRequest{
				Inputs:  map[string]string{},
				Outputs: map[string]string{"output_pdb_path": "1AKI.pdb"},
				Config:  map[string]any{"pdb_code": "1AKI"},
			},
		},
		{
			name: "inputs and config file",
			args: map[string]any{
				"input_pdb_path":  pdb,
				"config":          props,
				"output_gro_path": "out.gro",
			},
			want: JobRequest{
				Inputs:     map[string]string{"input_pdb_path": pdb},
				Outputs:    map[string]string{"output_gro_path": "out.gro"},
				ConfigFile: props,
			},
		},
		{
			name: "config key wins over other maps",
			args: map[string]any{
				"aaa":    map[string]any{"from": "aaa"},
				"config": map[string]any{"from": "config"},
				"zzz":    map[string]any{"from": "zzz"},
			},
			want: JobRequest{
				Inputs:  map[string]string{},
				Outputs: map[string]string{},
				Config:  map[string]any{"from": "config"},
			},
		},
		{
			name: "first map in key order without config key",
			args: map[string]any{
				"properties": map[string]any{"from": "properties"},
				"extra":      map[string]any{"from": "extra"},
			},
			want: JobRequest{
				Inputs:  map[string]string{},
				Outputs: map[string]string{},
				Config:  map[string]any{"from": "extra"},
			},
		},
		{
			name: "unprefixed existing file is uploaded",
			args: map[string]any{
				"topology": top,
				"missing":  filepath.Join(dir, "nope.txt"),
				"count":    3,
			},
			want: JobRequest{
				Inputs:  map[string]string{"topology": top},
				Outputs: map[string]string{},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// map order is random, repeat to catch order dependence
			for i := 0; i < 20; i++ {
				got := NewJobRequest(tt.args)
				if !reflect.DeepEqual(got, tt.want) {
					t.Fatalf("NewJobRequest() got = %+v, want %+v", got, tt.want)
				}
			}
		})
	}
}

func TestJobHash(t *testing.T) {
	dir := t.TempDir()
	pdb := writeFile(t, dir, "in.pdb", "ATOM 1")
	req := JobRequest{
		Inputs:  map[string]string{"input_pdb_path": pdb},
		Outputs: map[string]string{"output_pdb_path": "fixed.pdb"},
		Config:  map[string]any{"a": 1, "b": "x"},
	}

	first, err := JobHash("launch/biobb_model/fix_side_chain", req)
	if err != nil {
		t.Fatalf("JobHash() error = %v", err)
	}
	second, _ := JobHash("launch/biobb_model/fix_side_chain", req)
	if first != second {
		t.Errorf("JobHash() not stable: %s != %s", first, second)
	}

	other, _ := JobHash("launch/biobb_model/mutate", req)
	if other == first {
		t.Errorf("JobHash() ignores endpoint")
	}

	writeFile(t, dir, "in.pdb", "ATOM 2")
	edited, _ := JobHash("launch/biobb_model/fix_side_chain", req)
	if edited == first {
		t.Errorf("JobHash() ignores input content")
	}

	req.Inputs["input_pdb_path"] = filepath.Join(dir, "gone.pdb")
	if _, err := JobHash("x", req); err == nil {
		t.Errorf("JobHash() expected error for missing input")
	}
}
