package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestFetch_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("logo-bytes"))
	}))
	defer srv.Close()

	f := New()
	data, err := f.Fetch(context.Background(), srv.URL+"/logo.png")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "logo-bytes" {
		t.Errorf("got %q", data)
	}

	if _, err := f.Fetch(context.Background(), srv.URL+"/missing.png"); err == nil {
		t.Error("expected an error for 404")
	}
}

func TestFetch_LocalAndDataURI(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logo.png")
	if err := os.WriteFile(path, []byte("on-disk"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		location string
		want     string
	}{
		{path, "on-disk"},
		{"file://" + path, "on-disk"},
		{"data:image/png;base64,aGVsbG8=", "hello"},
		{"data:text/plain,hi%20there", "hi there"},
	}
	f := New()
	for _, tt := range tests {
		got, err := f.Fetch(context.Background(), tt.location)
		if err != nil {
			t.Errorf("Fetch(%q): %v", tt.location, err)
			continue
		}
		if string(got) != tt.want {
			t.Errorf("Fetch(%q) = %q, want %q", tt.location, got, tt.want)
		}
	}
}

func TestFetch_Errors(t *testing.T) {
	f := New()
	for _, loc := range []string{"", "/does/not/exist.png", "data:image/png;base64", "data:image/png;base64,%%%"} {
		if _, err := f.Fetch(context.Background(), loc); err == nil {
			t.Errorf("Fetch(%q) should fail", loc)
		}
	}
}
