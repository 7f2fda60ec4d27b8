package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/packages/base", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer secret")
		}
		w.Write([]byte(`{"name":"base","versions":["1.0.0","1.1.0"]}`))
	})
	mux.HandleFunc("/packages/base/1.1.0", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"base","version":"1.1.0","manifest":{"name":"base","version":"1.1.0","packages":[{"name":"dep","version":"^2.0.0"}]}}`))
	})
	mux.HandleFunc("/packages/private", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	mux.HandleFunc("/packages/flaky", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("/packages/garbled", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	})
	mux.HandleFunc("/packages/renamed", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"something-else","versions":[]}`))
	})
	mux.HandleFunc("/packages/teapot", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	mux.HandleFunc("/packages/base/2.0.0", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"base","version":"2.0.0"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchMetadataVersions(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL+"/", WithToken("secret"))

	info, err := c.FetchMetadata(context.Background(), "base", "")
	if err != nil {
		t.Fatalf("FetchMetadata: %v", err)
	}
	if len(info.Versions) != 2 || info.Versions[1] != "1.1.0" {
		t.Errorf("Versions = %v, want [1.0.0 1.1.0]", info.Versions)
	}
}

func TestFetchMetadataManifest(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL)

	info, err := c.FetchMetadata(context.Background(), "base", "1.1.0")
	if err != nil {
		t.Fatalf("FetchMetadata: %v", err)
	}
	if info.Manifest == nil || len(info.Manifest.Packages) != 1 {
		t.Fatalf("Manifest = %+v, want one dependency", info.Manifest)
	}
	if got := info.Manifest.Packages[0].Version; got != "^2.0.0" {
		t.Errorf("dependency range = %q, want %q", got, "^2.0.0")
	}
}

func TestFetchMetadataFailures(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL)

	tests := []struct {
		name, version string
		want          Reason
	}{
		{"missing", "", ReasonNotFound},
		{"private", "", ReasonAccessDenied},
		{"flaky", "", ReasonNetwork},
		{"garbled", "", ReasonIntegrity},
		{"renamed", "", ReasonIntegrity},
		{"teapot", "", ReasonUnknown},
		{"base", "2.0.0", ReasonIntegrity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.FetchMetadata(context.Background(), tt.name, tt.version)
			var f *Failure
			if !errors.As(err, &f) {
				t.Fatalf("err = %v, want *Failure", err)
			}
			if f.Reason != tt.want {
				t.Errorf("Reason = %q, want %q", f.Reason, tt.want)
			}
			if f.Name != tt.name {
				t.Errorf("Name = %q, want %q", f.Name, tt.name)
			}
		})
	}
}

func TestFetchMetadataNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).FetchMetadata(context.Background(), "base", "")
	if got := ReasonOf(err); got != ReasonNetwork {
		t.Errorf("ReasonOf = %q, want %q (err %v)", got, ReasonNetwork, err)
	}
}

func TestFetchMetadataDisabled(t *testing.T) {
	c := New("")
	if c.Enabled() {
		t.Error("Enabled() = true for empty URL")
	}
	_, err := c.FetchMetadata(context.Background(), "base", "")
	if got := ReasonOf(err); got != ReasonNotFound {
		t.Errorf("ReasonOf = %q, want %q", got, ReasonNotFound)
	}
}

func TestReasonOfPlainError(t *testing.T) {
	if got := ReasonOf(errors.New("boom")); got != ReasonUnknown {
		t.Errorf("ReasonOf = %q, want %q", got, ReasonUnknown)
	}
}
