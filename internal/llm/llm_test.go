package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// chatServer answers chat completions with content and records the last request body.
func chatServer(t *testing.T, content string, last *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("path = %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if last != nil {
			_ = json.Unmarshal(body, last)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"created": 0,
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_CompleteJSON(t *testing.T) {
	var req map[string]any
	srv := chatServer(t, "```json\n{\"answer\":\"A12\"}\n```", &req)
	c := New(Config{BaseURL: srv.URL, Model: "test-model", APIKey: "k"}, nil)

	var out struct {
		Answer string `json:"answer"`
	}
	if err := c.CompleteJSON(context.Background(), "sys", "user", &out); err != nil {
		t.Fatal(err)
	}
	if out.Answer != "A12" {
		t.Errorf("Answer = %q", out.Answer)
	}
	if req["model"] != "test-model" || req["temperature"] != float64(0) {
		t.Errorf("request = %v", req)
	}
	if rf, _ := req["response_format"].(map[string]any); rf["type"] != "json_object" {
		t.Errorf("response_format = %v", req["response_format"])
	}
	if msgs, _ := req["messages"].([]any); len(msgs) != 2 {
		t.Errorf("messages = %v", req["messages"])
	}
}

func TestClient_EmptyAndInvalid(t *testing.T) {
	var out map[string]any
	empty := New(Config{BaseURL: chatServer(t, "  ", nil).URL}, nil)
	if err := empty.CompleteJSON(context.Background(), "s", "u", &out); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("err = %v, want ErrEmptyResponse", err)
	}
	bad := New(Config{BaseURL: chatServer(t, "not json", nil).URL}, nil)
	if err := bad.CompleteJSON(context.Background(), "s", "u", &out); err == nil {
		t.Error("expected decode error")
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct{ in, want string }{
		{`{"a":1}`, `{"a":1}`},
		{"Here: {\"a\":{\"b\":2}} done", `{"a":{"b":2}}`},
		{"none", "none"},
	}
	for _, tt := range tests {
		if got := extractJSON(tt.in); got != tt.want {
			t.Errorf("extractJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
