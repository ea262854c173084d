package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// openAITestServer mimics the chat completions and models endpoints of an
// OpenAI-compatible API.
func openAITestServer(t *testing.T, fragments []string) *httptest.Server {
	t.Helper()

	full := ""
	for _, f := range fragments {
		full += f
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []Message `json:"messages"`
			Stream   bool      `json:"stream"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if len(req.Messages) == 0 || req.Messages[0].Role != "system" {
			t.Error("system prompt should be injected as the first message")
		}

		if !req.Stream {
			fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":%q}}]}`, full)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range fragments {
			data, _ := json.Marshal(f)
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%s}}]}\n\n", data)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"id":"gpt-4o"},{"id":"gpt-3.5-turbo"},{"id":"whisper-1"}]}`)
	})

	return httptest.NewServer(mux)
}

func TestOpenAIStreamMatchesChat(t *testing.T) {
	fragments := []string{"The ", "quick ", "fox"}
	server := openAITestServer(t, fragments)
	defer server.Close()

	p := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL + "/v1"})

	history := []Message{{Role: "user", Content: "hi"}}

	sync, err := p.Chat(context.Background(), history, "be brief")
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	stream, err := p.StreamChat(context.Background(), history, "be brief")
	if err != nil {
		t.Fatalf("StreamChat failed: %v", err)
	}
	streamed := collectStream(t, stream)

	if sync != streamed {
		t.Errorf("streamed text %q does not match sync text %q", streamed, sync)
	}
}

func TestOpenAIModelsFilteredToChatModels(t *testing.T) {
	server := openAITestServer(t, []string{"x"})
	defer server.Close()

	p := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL + "/v1"})

	models := p.AvailableModels(context.Background())
	if len(models) != 2 {
		t.Fatalf("expected 2 gpt models, got %v", models)
	}
	for _, m := range models {
		if m == "whisper-1" {
			t.Error("non-chat model should be filtered out")
		}
	}
}

func TestOpenAIModelsFallbackOnFailure(t *testing.T) {
	p := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: "http://127.0.0.1:1/v1"})

	models := p.AvailableModels(context.Background())
	if len(models) == 0 {
		t.Fatal("expected fallback models when endpoint is unreachable")
	}
	if models[0] != "gpt-4o" {
		t.Errorf("unexpected fallback list head: %s", models[0])
	}
}

func TestOpenAITransportErrorTagged(t *testing.T) {
	p := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: "http://127.0.0.1:1/v1"})

	_, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, "")
	if err == nil {
		t.Fatal("expected error against unreachable endpoint")
	}
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %T: %v", err, err)
	}
	if te.Provider != "openai" {
		t.Errorf("error tagged with wrong provider: %s", te.Provider)
	}
}
