package proxy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/abdhe/bedrock-inference-function/pkg/provider"
)

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]provider.Result
	getErr  error
	setErr  error
	sets    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]provider.Result)}
}

func (m *memoryCache) Key(modelID string, p provider.Payload) (string, error) {
	return fmt.Sprintf("%s|%s|%v|%s", modelID, p.MaxTokens, p.Temperature, p.Messages[0].Content), nil
}

func (m *memoryCache) Get(_ context.Context, key string) (provider.Result, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return provider.Result{}, false, m.getErr
	}
	res, ok := m.entries[key]
	return res, ok, nil
}

func (m *memoryCache) Set(_ context.Context, key string, res provider.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	m.entries[key] = res
	return nil
}

func TestHandle_CacheHitSkipsInvoker(t *testing.T) {
	inv := &fakeInvoker{reply: quantumReply}
	cache := newMemoryCache()
	h, logs := newTestHandler(inv, cache)
	req := Request{Prompt: "Explain quantum computing in simple terms"}

	first := h.Handle(context.Background(), req)
	logs.Reset()
	second := h.Handle(context.Background(), req)

	if n := len(inv.Calls()); n != 1 {
		t.Errorf("invoker called %d times, want 1", n)
	}
	if first.Body != second.Body || second.StatusCode != 200 {
		t.Errorf("cached response differs:\n%s\n%s", first.Body, second.Body)
	}

	entries := logEntries(t, logs)
	if len(entries) != 2 {
		t.Fatalf("expected 2 log lines on a cache hit, got %d", len(entries))
	}
	if entries[0]["message"] != "Serving response from cache" {
		t.Errorf("first log = %v", entries[0]["message"])
	}
	if entries[1]["cached"] != true {
		t.Errorf("success log should mark cached=true: %v", entries[1])
	}
}

func TestHandle_CacheKeyIncludesParams(t *testing.T) {
	inv := &fakeInvoker{reply: quantumReply}
	h, _ := newTestHandler(inv, newMemoryCache())

	h.Handle(context.Background(), Request{Prompt: "hi", MaxTokens: tokensPtr("10")})
	h.Handle(context.Background(), Request{Prompt: "hi", MaxTokens: tokensPtr("20")})

	if n := len(inv.Calls()); n != 2 {
		t.Errorf("invoker called %d times, want 2", n)
	}
}

func TestHandle_CacheFailuresDegrade(t *testing.T) {
	cache := newMemoryCache()
	cache.getErr = errors.New("redis down")
	cache.setErr = errors.New("redis down")
	inv := &fakeInvoker{reply: quantumReply}
	h, logs := newTestHandler(inv, cache)

	resp := h.Handle(context.Background(), Request{Prompt: "hi"})

	if resp.StatusCode != 200 {
		t.Fatalf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if n := len(inv.Calls()); n != 1 {
		t.Errorf("invoker called %d times, want 1", n)
	}

	warnings := 0
	for _, e := range logEntries(t, logs) {
		if e["level"] == "warn" {
			warnings++
		}
	}
	if warnings != 2 {
		t.Errorf("expected 2 warnings (lookup and store), got %d", warnings)
	}
}

func TestHandle_CacheSkipsFailures(t *testing.T) {
	cache := newMemoryCache()

	empty := &fakeInvoker{reply: `{"content":[]}`}
	h, _ := newTestHandler(empty, cache)
	if resp := h.Handle(context.Background(), Request{Prompt: "hi"}); resp.StatusCode != 500 {
		t.Fatalf("StatusCode = %d, want 500", resp.StatusCode)
	}

	failing := &fakeInvoker{err: &provider.ServiceError{Code: "ThrottlingException", Message: "Rate exceeded"}}
	h, _ = newTestHandler(failing, cache)
	h.Handle(context.Background(), Request{Prompt: "hi"})

	if cache.sets != 0 {
		t.Errorf("cache stored %d failed replies, want 0", cache.sets)
	}
}
