package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseJSONResponsePlain(t *testing.T) {
	result := ParseJSONResponse(`{"key": "value", "num": 42}`)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result["key"] != "value" {
		t.Errorf("expected key='value', got %v", result["key"])
	}
	if result["num"] != float64(42) {
		t.Errorf("expected num=42, got %v", result["num"])
	}
}

func TestParseJSONResponseWithCodeFence(t *testing.T) {
	text := "```json\n{\"key\": \"value\"}\n```"
	result := ParseJSONResponse(text)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result["key"] != "value" {
		t.Errorf("expected key='value', got %v", result["key"])
	}
}

func TestParseJSONResponseWithPlainFence(t *testing.T) {
	text := "```\n{\"key\": \"value\"}\n```"
	result := ParseJSONResponse(text)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result["key"] != "value" {
		t.Errorf("expected key='value', got %v", result["key"])
	}
}

func TestParseJSONResponseInvalid(t *testing.T) {
	result := ParseJSONResponse("not json at all")
	if result != nil {
		t.Error("expected nil for invalid JSON")
	}
}

func TestParseJSONResponseEmpty(t *testing.T) {
	result := ParseJSONResponse("")
	if result != nil {
		t.Error("expected nil for empty string")
	}
}

func TestParseJSONResponseWhitespace(t *testing.T) {
	result := ParseJSONResponse("  \n  {\"key\": \"value\"}  \n  ")
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result["key"] != "value" {
		t.Errorf("expected key='value', got %v", result["key"])
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct{ in, want string }{
		{"plain", "plain"},
		{"```html\n<h2>T</h2>\n```", "<h2>T</h2>"},
		{"```\nno close", "no close"},
		{"  ```md\n# Title\n```  ", "# Title"},
	}
	for _, tt := range tests {
		if got := StripCodeFences(tt.in); got != tt.want {
			t.Errorf("StripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOpenAIProviderGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"hello"}}]}`))
	}))
	defer srv.Close()

	p := &OpenAIProvider{Model: "m", APIKey: "sk-test", BaseURL: srv.URL, client: srv.Client()}
	out, err := p.Generate(context.Background(), "hi", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hello" {
		t.Errorf("expected 'hello', got %q", out)
	}
}

func TestOpenAIProviderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := &OpenAIProvider{Model: "m", APIKey: "k", BaseURL: srv.URL, client: srv.Client()}
	_, err := p.Generate(context.Background(), "hi", 10)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", se.StatusCode)
	}
}

func TestOpenAIProviderRequiresKey(t *testing.T) {
	p := &OpenAIProvider{Model: "m"}
	if p.IsConfigured() {
		t.Error("expected unconfigured provider without key")
	}
	if _, err := p.Generate(context.Background(), "hi", 10); err == nil {
		t.Error("expected error without key")
	}
}

func TestOllamaProviderGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.Write([]byte(`{"models":[{"name":"qwen2.5:7b"}]}`))
		case "/api/chat":
			w.Write([]byte(`{"message":{"content":"from ollama"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewOllamaProvider("qwen2.5:7b", srv.URL)
	if !p.IsConfigured() {
		t.Fatal("expected provider to be configured")
	}
	out, err := p.Generate(context.Background(), "hi", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "from ollama" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestCreateProviderNoneAvailable(t *testing.T) {
	t.Setenv("ARTICLEFORGE_TEST_MISSING_KEY", "")
	p := CreateProvider(context.Background(), Options{
		Provider:     "openai",
		OpenAIModel:  "gpt-4o-mini",
		OpenAIKeyEnv: "ARTICLEFORGE_TEST_MISSING_KEY",
		GeminiKeyEnv: "ARTICLEFORGE_TEST_MISSING_KEY",
	})
	if p != nil {
		t.Errorf("expected nil provider, got %T", p)
	}
}
