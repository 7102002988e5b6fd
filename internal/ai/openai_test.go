package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIChat(t *testing.T) {
	var gotAuth string
	var gotReq openAIChatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": `{"response":"ok"}`}},
			},
		})
	}))
	defer srv.Close()

	p := NewOpenAIProvider(srv.URL, "sk-test", "gpt-test", "embed-test", "", "")
	out, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if out != `{"response":"ok"}` {
		t.Fatalf("unexpected reply: %q", out)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if gotReq.ResponseFormat == nil || gotReq.ResponseFormat.Type != "json_object" {
		t.Fatalf("json_object response format not requested: %+v", gotReq.ResponseFormat)
	}
}

func TestOpenAIChatRequiresAPIKey(t *testing.T) {
	p := NewOpenAIProvider("http://example.invalid", "", "gpt-test", "e", "", "")
	if _, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "x"}}); err == nil {
		t.Fatal("expected an error without an api key")
	}
}

func TestOpenAIEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req openAIEmbedReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "embed-test" || len(req.Input) != 1 || req.Input[0] != "text" {
			t.Errorf("unexpected request: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float32{1, 2}}},
		})
	}))
	defer srv.Close()

	p := NewOpenAIProvider(srv.URL, "sk-test", "gpt-test", "embed-test", "", "")
	vec, err := p.Embed(context.Background(), "text")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vec) != 2 {
		t.Fatalf("unexpected vector: %v", vec)
	}
}

func TestRegistryRoutesByName(t *testing.T) {
	reg := NewRegistry()
	reg.Register("Fake", func(ctx context.Context, model string) (Provider, error) {
		_ = ctx
		_ = model
		return NewOllamaProvider("http://example.invalid", model, ""), nil
	})

	if _, err := reg.Get(context.Background(), "fake", "m"); err != nil {
		t.Fatalf("lookup is case-insensitive: %v", err)
	}
	if _, err := reg.Get(context.Background(), "missing", "m"); err == nil {
		t.Fatal("expected an error for an unregistered provider")
	}
}

func TestRegistryResolvesEmbedders(t *testing.T) {
	reg := NewRegistry()
	var gotModel string
	reg.RegisterEmbedder("Fake", func(ctx context.Context, model string) (Embedder, error) {
		_ = ctx
		gotModel = model
		return NewOllamaProvider("http://example.invalid", "", model), nil
	})

	emb, err := reg.GetEmbedder(context.Background(), " fake ", "nomic-embed-text")
	if err != nil {
		t.Fatalf("get embedder: %v", err)
	}
	if emb == nil {
		t.Fatal("expected an embedder")
	}
	if gotModel != "nomic-embed-text" {
		t.Fatalf("embedding model not forwarded: %q", gotModel)
	}

	// provider and embedder namespaces are independent
	if _, err := reg.Get(context.Background(), "fake", "m"); err == nil {
		t.Fatal("expected no chat provider under an embedder-only name")
	}
	if _, err := reg.GetEmbedder(context.Background(), "missing", "m"); err == nil {
		t.Fatal("expected an error for an unregistered embedder")
	}
}
