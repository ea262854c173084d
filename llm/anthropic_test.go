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

// anthropicTestServer serves the messages endpoint, answering sync requests
// with a fixed body and stream requests with SSE events for the same text.
func anthropicTestServer(t *testing.T, fragments []string) *httptest.Server {
	t.Helper()

	full := ""
	for _, f := range fragments {
		full += f
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("x-api-key") == "" {
			t.Error("missing x-api-key header")
		}
		if r.Header.Get("anthropic-version") != anthropicVersion {
			t.Errorf("unexpected anthropic-version header: %s", r.Header.Get("anthropic-version"))
		}

		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		for _, msg := range req.Messages {
			if msg.Role == "system" {
				t.Error("system role leaked into Anthropic messages array")
			}
		}

		if !req.Stream {
			fmt.Fprintf(w, `{"content":[{"type":"text","text":%q}],"stop_reason":"end_turn"}`, full)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: message_start\ndata: {\"type\":\"message_start\"}\n\n")
		for _, f := range fragments {
			data, _ := json.Marshal(f)
			fmt.Fprintf(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":%s}}\n\n", data)
		}
		// a malformed record must be skipped, not fatal
		fmt.Fprint(w, "data: {not json}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"message_stop\"}\n\n")
	}))
}

func collectStream(t *testing.T, ch <-chan StreamResponse) string {
	t.Helper()
	var full string
	for chunk := range ch {
		if chunk.Error != nil {
			t.Fatalf("unexpected stream error: %v", chunk.Error)
		}
		full += chunk.Content
	}
	return full
}

func TestAnthropicStreamMatchesChat(t *testing.T) {
	fragments := []string{"Hello", ", ", "world", "!"}
	server := anthropicTestServer(t, fragments)
	defer server.Close()

	p := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL})

	history := []Message{
		{Role: "system", Content: "stored system notice"},
		{Role: "user", Content: "hi"},
	}

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
	if sync != "Hello, world!" {
		t.Errorf("unexpected reply: %q", sync)
	}
}

func TestAnthropicNon2xxIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL})

	_, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, "")
	if err == nil {
		t.Fatal("expected error on 503 response")
	}

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %T: %v", err, err)
	}
	if te.Provider != "anthropic" {
		t.Errorf("error tagged with wrong provider: %s", te.Provider)
	}
}

func TestAnthropicEmptyBodyIsProtocolError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"content":[]}`)
	}))
	defer server.Close()

	p := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL})

	_, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, "")
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProtocolError, got %T: %v", err, err)
	}
}

func TestAnthropicStreamErrorEventIsProtocolError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"partial\"}}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\"}}\n\n")
	}))
	defer server.Close()

	p := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL})

	stream, err := p.StreamChat(context.Background(), []Message{{Role: "user", Content: "hi"}}, "")
	if err != nil {
		t.Fatalf("StreamChat failed: %v", err)
	}

	var streamErr error
	for chunk := range stream {
		if chunk.Error != nil {
			streamErr = chunk.Error
		}
	}
	if streamErr == nil {
		t.Fatal("expected an error from the stream")
	}

	// the server responded; this is a reported condition, not a transport
	// failure
	var pe *ProtocolError
	if !errors.As(streamErr, &pe) {
		t.Fatalf("expected ProtocolError, got %T: %v", streamErr, streamErr)
	}
	if pe.Provider != "anthropic" {
		t.Errorf("error tagged with wrong provider: %s", pe.Provider)
	}
}

func TestAnthropicValidateConnection(t *testing.T) {
	server := anthropicTestServer(t, []string{"Hello!"})
	defer server.Close()

	p := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL})
	if !p.ValidateConnection(context.Background()) {
		t.Error("expected validation to succeed against healthy server")
	}

	server.Close()
	if p.ValidateConnection(context.Background()) {
		t.Error("expected validation to fail against closed server")
	}
}
