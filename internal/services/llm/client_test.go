package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"vitrine/internal/services/llm"
)

func chatResponse(t *testing.T, payload any) []byte {
	t.Helper()
	content, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	body, err := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": string(content)}},
		},
	})
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return body
}

func newTestServer(t *testing.T, payload any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(chatResponse(t, payload))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClassifyReturnsCandidate(t *testing.T) {
	server := newTestServer(t, map[string]string{"category": "Master - Toys"})
	client := llm.NewClient("test-key", llm.WithBaseURL(server.URL))

	choice, err := client.Classify(context.Background(), "Игрушка мягкая", []string{"Master - Toys", "Master - Dolls"})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if choice != "Master - Toys" {
		t.Fatalf("unexpected choice %q", choice)
	}
}

func TestClassifyTreatsNoneAsNoMatch(t *testing.T) {
	server := newTestServer(t, map[string]string{"category": llm.None})
	client := llm.NewClient("test-key", llm.WithBaseURL(server.URL))

	choice, err := client.Classify(context.Background(), "Неизвестный товар", []string{"Master - Toys"})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if choice != "" {
		t.Fatalf("expected empty choice for NONE, got %q", choice)
	}
}

func TestClassifyRejectsInventedCategory(t *testing.T) {
	server := newTestServer(t, map[string]string{"category": "Master - Invented"})
	client := llm.NewClient("test-key", llm.WithBaseURL(server.URL))

	if _, err := client.Classify(context.Background(), "Товар", []string{"Master - Toys"}); err == nil {
		t.Fatal("expected error for answer outside candidates")
	}
}

func TestFillAttributesDropsInventedKeys(t *testing.T) {
	server := newTestServer(t, map[string]any{
		"Toys*material": "плюш",
		"Toys*invented": "мимо схемы",
	})
	client := llm.NewClient("test-key", llm.WithBaseURL(server.URL))

	values, err := client.FillAttributes(context.Background(), "Игрушка мягкая", []llm.AttributeSpec{
		{Code: "Toys*material", Type: "string", Mandatory: true},
	})
	if err != nil {
		t.Fatalf("FillAttributes failed: %v", err)
	}
	if values["Toys*material"] != "плюш" {
		t.Fatalf("expected known key to survive, got %#v", values)
	}
	if _, ok := values["Toys*invented"]; ok {
		t.Fatal("expected invented key to be dropped")
	}
}

func TestCompleteSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	t.Cleanup(server.Close)
	client := llm.NewClient("test-key", llm.WithBaseURL(server.URL))

	if _, err := client.Classify(context.Background(), "Товар", []string{"Master - Toys"}); err == nil {
		t.Fatal("expected error from http failure")
	}
}
