package gemini

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func TestClient_UploadFile(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 1. Initial request opens the resumable session
		if r.Method == "POST" && r.URL.Path == "/upload/v1beta/files" {
			if r.Header.Get("X-Goog-Upload-Protocol") != "resumable" {
				t.Errorf("Expected resumable protocol header")
			}
			if r.Header.Get("X-Goog-Upload-Header-Content-Type") != "text/plain" {
				t.Errorf("Expected content type header, got %q", r.Header.Get("X-Goog-Upload-Header-Content-Type"))
			}
			w.Header().Set("X-Goog-Upload-URL", "http://"+r.Host+"/upload_session")
			w.WriteHeader(http.StatusOK)
			return
		}

		// 2. Byte upload finalizes
		if r.Method == "POST" && r.URL.Path == "/upload_session" {
			if r.Header.Get("X-Goog-Upload-Command") != "upload, finalize" {
				t.Errorf("Expected upload command")
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"file": {"uri": "files/123456789"}}`))
			return
		}

		t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
	}))
	defer ts.Close()

	client := &Client{
		apiKey:     "test-key",
		baseURL:    ts.URL + "/v1beta",
		httpClient: ts.Client(),
	}

	tmpFile := t.TempDir() + "/test.txt"
	if err := os.WriteFile(tmpFile, []byte("test content"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	uri, err := client.UploadFile(context.Background(), tmpFile, "text/plain")
	if err != nil {
		t.Fatalf("UploadFile failed: %v", err)
	}
	if uri != "files/123456789" {
		t.Errorf("Expected URI 'files/123456789', got %s", uri)
	}
}

func TestClient_DeleteFile(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "DELETE" {
			t.Errorf("Expected DELETE, got %s", r.Method)
		}
		if r.URL.Path != "/v1beta/files/abc" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := &Client{
		apiKey:     "test-key",
		baseURL:    ts.URL + "/v1beta",
		httpClient: ts.Client(),
	}

	if err := client.DeleteFile(context.Background(), "abc"); err != nil {
		t.Fatalf("DeleteFile failed: %v", err)
	}
}
