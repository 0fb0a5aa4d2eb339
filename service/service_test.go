package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cogniclear/cogniclear/classify"
	"github.com/cogniclear/cogniclear/descriptor"
)

func postSimplify(t *testing.T, srv *httptest.Server, req classify.Request) (*http.Response, classify.Response) {
	t.Helper()
	body, _ := json.Marshal(req)
	resp, err := http.Post(srv.URL+"/api/simplify", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var env classify.Response
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return resp, env
}

func compactBatch(n int) []descriptor.CompactDescriptor {
	batch := make([]descriptor.CompactDescriptor, n)
	for i := range batch {
		batch[i] = descriptor.CompactDescriptor{
			ID:   fmt.Sprintf("cogni-element-%d", i),
			Text: "Main Menu",
			Type: "button",
		}
	}
	return batch
}

func TestSimplifyWithRuleModel(t *testing.T) {
	srv := httptest.NewServer(New(NewRuleModel(), nil).Router())
	defer srv.Close()

	resp, env := postSimplify(t, srv, classify.Request{
		Elements:  compactBatch(3),
		PageURL:   "https://example.com/p",
		PageTitle: "P",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	if !env.Success {
		t.Fatalf("envelope: %+v", env)
	}
	if env.TotalElements != 3 || env.EssentialElements != 3 {
		t.Errorf("counts: total=%d essential=%d", env.TotalElements, env.EssentialElements)
	}

	var items []descriptor.ClassifiedItem
	if err := json.Unmarshal(env.Simplified, &items); err != nil {
		t.Fatalf("simplified not an array: %v", err)
	}
	if items[0].Category != descriptor.CategoryNavigation {
		t.Errorf("category: got %q", items[0].Category)
	}
}

func TestSimplifyRejectsEmptyBatch(t *testing.T) {
	srv := httptest.NewServer(New(NewRuleModel(), nil).Router())
	defer srv.Close()

	resp, env := postSimplify(t, srv, classify.Request{PageURL: "https://example.com/p"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
	if env.Success {
		t.Error("envelope: want success=false")
	}
}

func TestSimplifyCapsOversizedBatch(t *testing.T) {
	srv := httptest.NewServer(New(NewRuleModel(), nil).Router())
	defer srv.Close()

	resp, env := postSimplify(t, srv, classify.Request{
		Elements: compactBatch(MaxElements + 40),
		PageURL:  "https://example.com/p",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	if env.TotalElements != MaxElements+40 {
		t.Errorf("total: got %d", env.TotalElements)
	}
	if env.EssentialElements != MaxElements {
		t.Errorf("essential: got %d, want %d", env.EssentialElements, MaxElements)
	}
}

type failingModel struct{}

func (failingModel) Simplify(ctx context.Context, req classify.Request) ([]descriptor.ClassifiedItem, error) {
	return nil, fmt.Errorf("model exploded")
}

func TestSimplifyModelFailure(t *testing.T) {
	srv := httptest.NewServer(New(failingModel{}, nil).Router())
	defer srv.Close()

	resp, env := postSimplify(t, srv, classify.Request{Elements: compactBatch(1)})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status: got %d, want 500", resp.StatusCode)
	}
	if env.Success {
		t.Error("envelope: want success=false")
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(New(NewRuleModel(), nil).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status: got %d", resp.StatusCode)
	}
}

func TestOpenAIModelParsesFencedOutput(t *testing.T) {
	items := []descriptor.ClassifiedItem{{
		ID: "e1", OriginalText: "Submit", SimplifiedText: "Submit Form",
		Category: descriptor.CategoryAction, Importance: descriptor.ImportanceEssential,
	}}
	encoded, _ := json.Marshal(items)

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Models habitually wrap JSON in markdown fences.
		content := "```json\n" + string(encoded) + "\n```"
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		})
	}))
	defer backend.Close()

	m := NewOpenAIModel(backend.URL, "key", "test-model")
	got, err := m.Simplify(context.Background(), classify.Request{Elements: compactBatch(1)})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].SimplifiedText != "Submit Form" {
		t.Errorf("items: %+v", got)
	}
}
