package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"
)

func TestCreateAtUsesVersionAndSlug(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	path, err := createAt(dir, "  Payout: retry index ", now)
	if err != nil {
		t.Fatalf("createAt: %v", err)
	}
	if filepath.Base(path) != "20260301100000_payout_retry_index.sql" {
		t.Fatalf("unexpected file %q", filepath.Base(path))
	}
	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(body), "-- revert payout_retry_index") {
		t.Fatalf("template not rendered: %s", body)
	}

	if _, err := createAt(dir, "payout retry index", now); err == nil {
		t.Fatalf("expected collision on the same version")
	}
}

func TestCreateAtRejectsEmptySlug(t *testing.T) {
	if _, err := createAt(t.TempDir(), "!!!", time.Now()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidateFS(t *testing.T) {
	ok := "-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n"
	tests := []struct {
		name    string
		files   fstest.MapFS
		wantErr string
	}{
		{"valid", fstest.MapFS{"20260301100000_a.sql": {Data: []byte(ok)}, "README.md": {Data: []byte("x")}}, ""},
		{"bad name", fstest.MapFS{"1_a.sql": {Data: []byte(ok)}}, "invalid migration filename"},
		{"duplicate version", fstest.MapFS{
			"20260301100000_a.sql": {Data: []byte(ok)},
			"20260301100000_b.sql": {Data: []byte(ok)},
		}, "used by both"},
		{"missing down", fstest.MapFS{"20260301100000_a.sql": {Data: []byte("-- +goose Up\n")}}, "+goose Down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFS(tt.files)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestEmbeddedMigrationsValidate(t *testing.T) {
	if err := ValidateFS(Embedded()); err != nil {
		t.Fatalf("embedded migrations: %v", err)
	}
}
