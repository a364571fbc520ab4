package ci

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestBuildbotStopSuccess(t *testing.T) {
	var stopCalled bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			w.WriteHeader(http.StatusFound)
		case "/builders/_selected/stopselected":
			stopCalled = true
			r.ParseForm()
			if got := r.Form["selected"]; len(got) != 2 {
				t.Errorf("selected builders = %v, want 2", got)
			}
			w.Write([]byte("ok"))
		case "/logout":
			w.WriteHeader(http.StatusFound)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	d := NewBuildbotDriver(srv.URL, "homu", "secret")
	if err := d.Stop([]string{"builder-a", "builder-b"}); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if !stopCalled {
		t.Errorf("stopselected endpoint was never called")
	}
}

func TestBuildbotStopAuthzFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/builders/_selected/stopselected":
			w.Write([]byte("authzfail"))
		default:
			w.WriteHeader(http.StatusFound)
		}
	}))
	defer srv.Close()

	d := NewBuildbotDriver(srv.URL, "homu", "secret")
	err := d.Stop([]string{"builder-a"})
	if err == nil || !strings.Contains(err.Error(), "Authorization") {
		t.Fatalf("Stop() error = %v, want an authorization failure", err)
	}
}

func TestBuildbotStopErrorDiv(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/builders/_selected/stopselected":
			w.Write([]byte(`<div class="error">builder not found</div>`))
		default:
			w.WriteHeader(http.StatusFound)
		}
	}))
	defer srv.Close()

	d := NewBuildbotDriver(srv.URL, "homu", "secret")
	err := d.Stop([]string{"builder-a"})
	if err == nil || !strings.Contains(err.Error(), "builder not found") {
		t.Fatalf("Stop() error = %v, want the error div's text", err)
	}
}
