package loader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/part.stl" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "model/stl")
		w.Write([]byte(cubeSTL))
	}))
	defer srv.Close()

	f := &HTTPFetcher{Client: srv.Client()}

	asset, err := f.Fetch(context.Background(), srv.URL+"/models/part.stl")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if asset.ContentType != "model/stl" || string(asset.Data) != cubeSTL {
		t.Errorf("unexpected asset %+v", asset)
	}

	_, err = f.Fetch(context.Background(), srv.URL+"/missing.glb")
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Errorf("expected 404 StatusError, got %v", err)
	}
}

func TestFileFetcher(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "parts"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "parts", "bolt.stl"), []byte(cubeSTL), 0644); err != nil {
		t.Fatal(err)
	}

	f := &FileFetcher{Root: root}
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"bare path", "parts/bolt.stl", false},
		{"file url", "file:///parts/bolt.stl", false},
		{"climb stays in root", "../../parts/bolt.stl", false},
		{"missing", "parts/nut.stl", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asset, err := f.Fetch(context.Background(), tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Fetch(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
			if err == nil && filepath.Base(asset.Name) != "bolt.stl" {
				t.Errorf("asset name = %q", asset.Name)
			}
		})
	}
}

func TestFetchSizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/chunked.stl" {
			// Flushing early drops Content-Length, so only the read cap applies.
			w.Write([]byte(cubeSTL[:10]))
			w.(http.Flusher).Flush()
			w.Write([]byte(cubeSTL[10:]))
			return
		}
		w.Write([]byte(cubeSTL))
	}))
	defer srv.Close()

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "part.stl"), []byte(cubeSTL), 0644); err != nil {
		t.Fatal(err)
	}

	limit := int64(len(cubeSTL))
	tests := []struct {
		name    string
		fetcher Fetcher
		url     string
		wantErr bool
	}{
		{"http at limit", &HTTPFetcher{Client: srv.Client(), MaxBytes: limit}, srv.URL + "/part.stl", false},
		{"http over limit", &HTTPFetcher{Client: srv.Client(), MaxBytes: limit - 1}, srv.URL + "/part.stl", true},
		{"http chunked over limit", &HTTPFetcher{Client: srv.Client(), MaxBytes: limit - 1}, srv.URL + "/chunked.stl", true},
		{"http unlimited", &HTTPFetcher{Client: srv.Client()}, srv.URL + "/chunked.stl", false},
		{"file at limit", &FileFetcher{Root: root, MaxBytes: limit}, "part.stl", false},
		{"file over limit", &FileFetcher{Root: root, MaxBytes: 8}, "part.stl", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asset, err := tt.fetcher.Fetch(context.Background(), tt.url)
			if tt.wantErr {
				if !errors.Is(err, ErrAssetTooLarge) {
					t.Fatalf("Fetch = %v, want ErrAssetTooLarge", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Fetch: %v", err)
			}
			if string(asset.Data) != cubeSTL {
				t.Errorf("got %d bytes, want %d", len(asset.Data), len(cubeSTL))
			}
		})
	}
}

func TestRouter(t *testing.T) {
	called := ""
	r := Router{
		"https": FetcherFunc(func(ctx context.Context, url string) (*Asset, error) {
			called = "https"
			return &Asset{}, nil
		}),
		"file": FetcherFunc(func(ctx context.Context, url string) (*Asset, error) {
			called = "file"
			return &Asset{}, nil
		}),
	}

	if _, err := r.Fetch(context.Background(), "HTTPS://cdn/part.glb"); err != nil || called != "https" {
		t.Errorf("https route: called=%q err=%v", called, err)
	}
	if _, err := r.Fetch(context.Background(), "/srv/models/part.glb"); err != nil || called != "file" {
		t.Errorf("bare path route: called=%q err=%v", called, err)
	}
	if _, err := r.Fetch(context.Background(), "ftp://host/part.glb"); !errors.Is(err, ErrUnsupportedScheme) {
		t.Errorf("expected ErrUnsupportedScheme, got %v", err)
	}
}
