package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestReleaseAssetURL(t *testing.T) {
	got := releaseAssetURL("v1.2.3", "linux", "amd64")
	want := "https://github.com/babs/pixconv/releases/download/v1.2.3/pixconv-linux-amd64.xz"
	if got != want {
		t.Errorf("releaseAssetURL = %q, want %q", got, want)
	}
	if got := releaseAssetURL("v1.2.3", "windows", "arm64"); !strings.HasSuffix(got, "pixconv-windows-arm64.exe.xz") {
		t.Errorf("windows asset = %q", got)
	}
}

func TestLatestRelease(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/babs/pixconv/releases/latest" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"tag_name": "v0.4.0", "name": "pixconv 0.4.0"}`))
	}))
	defer srv.Close()

	orig := releaseAPI
	defer func() { releaseAPI = orig }()
	releaseAPI = srv.URL + "/repos/%s/releases/latest"

	tag, err := latestRelease(srv.Client())
	if err != nil {
		t.Fatalf("latestRelease() error: %v", err)
	}
	if tag != "v0.4.0" {
		t.Errorf("tag = %q, want %q", tag, "v0.4.0")
	}
}

func TestLatestRelease_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	orig := releaseAPI
	defer func() { releaseAPI = orig }()
	releaseAPI = srv.URL + "/%s"

	if _, err := latestRelease(srv.Client()); err == nil || !strings.Contains(err.Error(), "403") {
		t.Errorf("error = %v, want HTTP 403", err)
	}
}
