package newsroom

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRemoteGeneratorSuccess(t *testing.T) {
	var gotAuth string
	var gotReq GenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"title":   "Five Ways to Unwind",
			"content": "<p>Breathe.</p>",
			"excerpt": "Small habits, big calm.",
		})
	}))
	defer srv.Close()

	g := NewRemoteGenerator(srv.URL, "secret-key", 5*time.Second)
	out, err := g.Generate(context.Background(), GenerateRequest{
		Topic:          "stress relief",
		Tone:           "warm",
		TargetAudience: "clients",
		Template:       "Wellness Tips",
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if out.Title != "Five Ways to Unwind" {
		t.Errorf("Title = %q", out.Title)
	}
	if out.Content == "" || out.Excerpt == "" {
		t.Errorf("expected content and excerpt, got %+v", out)
	}
	if gotAuth != "Bearer secret-key" {
		t.Errorf("Authorization = %q, want bearer key", gotAuth)
	}
	if gotReq.Topic != "stress relief" || gotReq.Template != "Wellness Tips" {
		t.Errorf("forwarded request = %+v", gotReq)
	}
}

func TestRemoteGeneratorErrorFieldOn200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"error": "model overloaded"})
	}))
	defer srv.Close()

	g := NewRemoteGenerator(srv.URL, "", 5*time.Second)
	if _, err := g.Generate(context.Background(), GenerateRequest{Topic: "x"}); err == nil {
		t.Fatal("expected error when payload carries an error field")
	}
}

func TestRemoteGeneratorNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewRemoteGenerator(srv.URL, "", 5*time.Second)
	if _, err := g.Generate(context.Background(), GenerateRequest{Topic: "x"}); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestRemoteGeneratorEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"title": "", "content": ""})
	}))
	defer srv.Close()

	g := NewRemoteGenerator(srv.URL, "", 5*time.Second)
	if _, err := g.Generate(context.Background(), GenerateRequest{Topic: "x"}); err == nil {
		t.Fatal("expected error for empty title and content")
	}
}

func TestRemoteGeneratorValidation(t *testing.T) {
	g := NewRemoteGenerator("http://127.0.0.1:1", "", time.Second)

	if _, err := g.Generate(context.Background(), GenerateRequest{}); err == nil {
		t.Error("expected error for missing topic")
	}
	if _, err := g.Generate(context.Background(), GenerateRequest{Topic: "x", Tone: "sassy"}); err == nil {
		t.Error("expected error for unknown tone")
	}
	if _, err := g.Generate(context.Background(), GenerateRequest{Topic: "x", TargetAudience: "martians"}); err == nil {
		t.Error("expected error for unknown audience")
	}

	unconfigured := NewRemoteGenerator("", "", time.Second)
	if _, err := unconfigured.Generate(context.Background(), GenerateRequest{Topic: "x"}); err == nil {
		t.Error("expected error when endpoint is not configured")
	}
}

func TestTemplateName(t *testing.T) {
	if got := TemplateName("wellness-tips"); got != "Wellness Tips" {
		t.Errorf("TemplateName = %q, want Wellness Tips", got)
	}
	if got := TemplateName("nope"); got != DefaultCategory {
		t.Errorf("unknown id should fall back to %q, got %q", DefaultCategory, got)
	}
	if got := TemplateName(""); got != DefaultCategory {
		t.Errorf("empty id should fall back to %q, got %q", DefaultCategory, got)
	}
}
