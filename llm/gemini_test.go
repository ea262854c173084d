package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGeminiRoleMapping(t *testing.T) {
	messages := []Message{
		{Role: "user", Content: "scan example.com"},
		{Role: "assistant", Content: "On it."},
		{Role: "system", Content: "provider unavailable"},
	}

	contents := toGeminiContents(messages, "")

	if len(contents) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(contents))
	}
	if contents[0].Role != "user" {
		t.Errorf("user role changed to %q", contents[0].Role)
	}
	if contents[1].Role != "model" {
		t.Errorf("assistant should map to model, got %q", contents[1].Role)
	}
	if contents[2].Role != "user" {
		t.Errorf("system should map to user, got %q", contents[2].Role)
	}
	if contents[2].Parts[0].Text != "System: provider unavailable" {
		t.Errorf("system content not prefixed: %q", contents[2].Parts[0].Text)
	}
}

func TestGeminiSystemPromptSyntheticExchange(t *testing.T) {
	contents := toGeminiContents([]Message{{Role: "user", Content: "hi"}}, "stay terse")

	if len(contents) != 3 {
		t.Fatalf("expected synthetic exchange plus message, got %d turns", len(contents))
	}
	if contents[0].Role != "user" || !strings.HasPrefix(contents[0].Parts[0].Text, "System instructions: ") {
		t.Errorf("first turn should carry the system instructions, got %+v", contents[0])
	}
	if contents[1].Role != "model" || !strings.HasPrefix(contents[1].Parts[0].Text, "Understood") {
		t.Errorf("second turn should acknowledge, got %+v", contents[1])
	}
}

func geminiTestServer(t *testing.T, fragments []string) *httptest.Server {
	t.Helper()

	full := strings.Join(fragments, "")

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") == "" {
			t.Error("missing key query parameter")
		}

		if strings.Contains(r.URL.Path, ":streamGenerateContent") {
			if r.URL.Query().Get("alt") != "sse" {
				t.Error("streaming request must set alt=sse")
			}
			w.Header().Set("Content-Type", "text/event-stream")
			for _, f := range fragments {
				fmt.Fprintf(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":%q}],\"role\":\"model\"}}]}\n\n", f)
			}
			fmt.Fprint(w, "data: not-a-json-record\n\n")
			return
		}

		// non-streaming path nests the text in candidates[0].content.parts
		fmt.Fprintf(w, `{"candidates":[{"content":{"parts":[{"text":%q},{"text":""}],"role":"model"},"finishReason":"STOP"}]}`, full)
	}))
}

func TestGeminiStreamMatchesChat(t *testing.T) {
	fragments := []string{"recon ", "plan ", "ready"}
	server := geminiTestServer(t, fragments)
	defer server.Close()

	p := NewGeminiProvider(Config{APIKey: "test-key", BaseURL: server.URL})

	history := []Message{{Role: "user", Content: "plan a scan"}}

	sync, err := p.Chat(context.Background(), history, "")
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	stream, err := p.StreamChat(context.Background(), history, "")
	if err != nil {
		t.Fatalf("StreamChat failed: %v", err)
	}
	streamed := collectStream(t, stream)

	if sync != streamed {
		t.Errorf("streamed text %q does not match sync text %q", streamed, sync)
	}
}

func TestGeminiFallbackModels(t *testing.T) {
	p := NewGeminiProvider(Config{APIKey: "test-key"})
	models := p.AvailableModels(context.Background())
	if len(models) == 0 {
		t.Fatal("expected a non-empty fallback model list")
	}
}
