package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/promptarena/arena/internal/domain"
)

func TestComplete(t *testing.T) {
	var gotPath, gotKey, gotAuthHeader string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		gotAuthHeader = r.Header.Get("Authorization")

		json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{
					"parts": []map[string]string{{"text": "generated answer"}},
				}},
			},
		})
	}))
	defer srv.Close()

	a := New("g-key", srv.URL, "gemini-1.5-flash")

	text, err := a.Complete(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if text != "generated answer" {
		t.Errorf("text = %q, want generated answer", text)
	}
	if !strings.Contains(gotPath, "models/gemini-1.5-flash:generateContent") {
		t.Errorf("path = %q, want generateContent for the model", gotPath)
	}
	if gotKey != "g-key" {
		t.Errorf("query key = %q, want g-key", gotKey)
	}
	if gotAuthHeader != "" {
		t.Errorf("auth header = %q, want none; the key rides on the query string", gotAuthHeader)
	}
}

func TestComplete_EmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"candidates": []interface{}{}})
	}))
	defer srv.Close()

	a := New("g-key", srv.URL, "")

	_, err := a.Complete(context.Background(), "hello")

	var shapeErr *domain.ShapeError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("err = %v, want ShapeError", err)
	}
	if shapeErr.Path != "candidates[0].content.parts[0].text" {
		t.Errorf("path = %q", shapeErr.Path)
	}
}

func TestConfigured(t *testing.T) {
	if New("", "", "").Configured() {
		t.Error("empty key should report unconfigured")
	}
	if !New("g-key", "", "").Configured() {
		t.Error("non-empty key should report configured")
	}
}
