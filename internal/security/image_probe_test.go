package security

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestImageProber_Probe(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		wantErr     bool
	}{
		{"画像", http.StatusOK, "image/jpeg", false},
		{"大文字のContent-Type", http.StatusOK, "IMAGE/PNG", false},
		{"HTML", http.StatusOK, "text/html; charset=utf-8", true},
		{"404", http.StatusNotFound, "image/png", true},
		{"Content-Typeなし", http.StatusOK, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var method string
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				method = r.Method
				if tt.contentType != "" {
					w.Header().Set("Content-Type", tt.contentType)
				}
				w.WriteHeader(tt.status)
			}))
			defer ts.Close()

			prober := NewImageProber(ts.Client())
			err := prober.Probe(context.Background(), ts.URL+"/poster.jpg")
			if (err != nil) != tt.wantErr {
				t.Errorf("Probe() error = %v, wantErr %v", err, tt.wantErr)
			}
			if method != http.MethodHead {
				t.Errorf("method = %q, want HEAD", method)
			}
		})
	}
}

func TestImageProber_SafeClientRejectsLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
	}))
	defer ts.Close()

	prober := NewImageProber(NewSSRFGuard().NewSafeClient(2 * time.Second))
	if err := prober.Probe(context.Background(), ts.URL+"/poster.png"); err == nil {
		t.Fatal("expected loopback image URL to be rejected")
	}
}
