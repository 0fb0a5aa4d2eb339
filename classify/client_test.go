package classify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cogniclear/cogniclear/descriptor"
)

func compactBatch(n int) []descriptor.CompactDescriptor {
	batch := make([]descriptor.CompactDescriptor, n)
	for i := range batch {
		batch[i] = descriptor.CompactDescriptor{ID: "e", Text: "Home", Type: "a"}
	}
	return batch
}

func TestClassifyOK(t *testing.T) {
	var gotReq Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		items := []descriptor.ClassifiedItem{
			{ID: "e", OriginalText: "Home", SimplifiedText: "Home", Category: descriptor.CategoryNavigation, Importance: descriptor.ImportanceEssential},
		}
		simplified, _ := json.Marshal(items)
		json.NewEncoder(w).Encode(Response{Success: true, Simplified: simplified})
	}))
	defer srv.Close()

	c := NewHTTPClient(StaticEndpoint(srv.URL))
	items, err := c.Classify(context.Background(), compactBatch(1), "https://example.com/a", "Example")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Category != descriptor.CategoryNavigation {
		t.Errorf("items: got %+v", items)
	}
	if gotReq.PageURL != "https://example.com/a" {
		t.Errorf("pageUrl: got %q", gotReq.PageURL)
	}
}

func TestClassifyBatchLimits(t *testing.T) {
	c := NewHTTPClient(StaticEndpoint("http://unused"))

	if _, err := c.Classify(context.Background(), nil, "u", "t"); err == nil {
		t.Error("empty batch: want error")
	} else if !errors.As(err, &ErrEmptyBatch{}) {
		t.Errorf("empty batch: got %T", err)
	}

	var tooLarge ErrBatchTooLarge
	if _, err := c.Classify(context.Background(), compactBatch(MaxBatch+1), "u", "t"); !errors.As(err, &tooLarge) {
		t.Errorf("oversized batch: got %v", err)
	} else if tooLarge.Size != MaxBatch+1 {
		t.Errorf("oversized batch size: got %d", tooLarge.Size)
	}
}

func TestClassifyServiceErrors(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		wantOp  string
	}{
		{
			"http 503",
			func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) },
			"status",
		},
		{
			"body not json",
			func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("<html>oops</html>")) },
			"decode",
		},
		{
			"success false",
			func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(Response{Success: false, Error: "overloaded"})
			},
			"decode",
		},
		{
			"simplified not an array",
			func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(Response{Success: true, Simplified: json.RawMessage(`"oops"`)})
			},
			"decode",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			c := NewHTTPClient(StaticEndpoint(srv.URL))
			_, err := c.Classify(context.Background(), compactBatch(1), "u", "t")

			var svcErr *ServiceError
			if !errors.As(err, &svcErr) {
				t.Fatalf("got %v, want *ServiceError", err)
			}
			if svcErr.Op != tc.wantOp {
				t.Errorf("op: got %q, want %q", svcErr.Op, tc.wantOp)
			}
		})
	}
}

func TestClassifyEndpointResolvedPerCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Response{Success: true, Simplified: json.RawMessage(`[]`)})
	}))
	defer srv.Close()

	endpoint := "http://127.0.0.1:1" // unroutable
	c := NewHTTPClient(func() string { return endpoint })

	if _, err := c.Classify(context.Background(), compactBatch(1), "u", "t"); err == nil {
		t.Fatal("unroutable endpoint: want error")
	}

	// Redirecting the source takes effect without rebuilding the client.
	endpoint = srv.URL
	if _, err := c.Classify(context.Background(), compactBatch(1), "u", "t"); err != nil {
		t.Fatalf("after endpoint switch: %v", err)
	}
}
