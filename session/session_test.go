package session

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/cogniclear/cogniclear/bus"
	"github.com/cogniclear/cogniclear/cache"
	"github.com/cogniclear/cogniclear/descriptor"
	"github.com/cogniclear/cogniclear/pipeline"
	"github.com/cogniclear/cogniclear/present"
)

type stubClient struct {
	fail bool
}

func (s *stubClient) Classify(ctx context.Context, batch []descriptor.CompactDescriptor, pageURL, pageTitle string) ([]descriptor.ClassifiedItem, error) {
	if s.fail {
		return nil, fmt.Errorf("service down")
	}
	items := make([]descriptor.ClassifiedItem, len(batch))
	for i, el := range batch {
		items[i] = descriptor.ClassifiedItem{
			ID: el.ID, OriginalText: el.Text, SimplifiedText: "remote:" + el.Text,
			Category: descriptor.CategoryAction, Importance: descriptor.ImportanceEssential,
		}
	}
	return items, nil
}

type nopRenderer struct{}

func (nopRenderer) ShowLoading(ctx context.Context) error { return nil }
func (nopRenderer) Update(ctx context.Context, items []descriptor.ClassifiedItem, partial bool) error {
	return nil
}
func (nopRenderer) Hide(ctx context.Context) error { return nil }

func testRouter(t *testing.T, client *stubClient) (*bus.Router, *cache.Cache) {
	t.Helper()
	els := []descriptor.ElementDescriptor{
		{ID: "e1", Text: "Home", IsVisible: true},
		{ID: "e2", Text: "Submit", IsVisible: true},
	}
	c := cache.New()
	pipe := pipeline.New(
		func(ctx context.Context) ([]descriptor.ElementDescriptor, error) { return els, nil },
		client, c)
	page := func(ctx context.Context) (pipeline.Page, error) {
		return pipeline.Page{URL: "https://example.com/p", Title: "P"}, nil
	}
	machine := present.NewMachine(pipe, nopRenderer{}, page, nil)

	sess := New(machine, pipe, c, client)
	r := bus.NewRouter()
	sess.Register(r)
	return r, c
}

func call(t *testing.T, r *bus.Router, kind string, payload []byte, out any) {
	t.Helper()
	resp, err := r.Call(context.Background(), kind, payload)
	if err != nil {
		t.Fatalf("%s: %v", kind, err)
	}
	if err := json.Unmarshal(resp, out); err != nil {
		t.Fatalf("%s: decode response: %v", kind, err)
	}
}

func TestToggleAndStateEnvelopes(t *testing.T) {
	r, _ := testRouter(t, &stubClient{})

	var st stateResponse
	call(t, r, bus.MsgGetState, nil, &st)
	if st.IsSimplified || st.HasData {
		t.Errorf("initial state: %+v", st)
	}

	var tg toggleResponse
	call(t, r, bus.MsgToggleSimplified, nil, &tg)
	if !tg.Success || tg.State != "simplified" {
		t.Errorf("toggle: %+v", tg)
	}

	call(t, r, bus.MsgGetState, nil, &st)
	if !st.IsSimplified || !st.HasData {
		t.Errorf("state after toggle: %+v", st)
	}

	call(t, r, bus.MsgToggleSimplified, nil, &tg)
	if !tg.Success || tg.State != "original" {
		t.Errorf("toggle back: %+v", tg)
	}
}

func TestProcessElements(t *testing.T) {
	r, _ := testRouter(t, &stubClient{})

	payload, _ := json.Marshal(processRequest{
		Elements: []descriptor.ElementDescriptor{
			{ID: "a", Text: "Download"},
			{ID: "b", Text: "Menu"},
		},
		PageURL:   "https://example.com/p",
		PageTitle: "P",
	})

	var resp processResponse
	call(t, r, bus.MsgProcessElements, payload, &resp)
	if !resp.Success || resp.TotalElements != 2 || len(resp.Items) != 2 {
		t.Errorf("process: %+v", resp)
	}
	if resp.Items[0].SimplifiedText != "remote:Download" {
		t.Errorf("items: %+v", resp.Items)
	}
}

func TestProcessElementsFallsBack(t *testing.T) {
	r, _ := testRouter(t, &stubClient{fail: true})

	payload, _ := json.Marshal(processRequest{
		Elements:  []descriptor.ElementDescriptor{{ID: "a", Text: "Main Menu"}},
		PageURL:   "https://example.com/p",
		PageTitle: "P",
	})

	// The remote path fails; the local rules answer instead, and the
	// caller never sees the failure.
	var resp processResponse
	call(t, r, bus.MsgProcessElements, payload, &resp)
	if !resp.Success || len(resp.Items) != 1 {
		t.Fatalf("process: %+v", resp)
	}
	if resp.Items[0].Category != descriptor.CategoryNavigation {
		t.Errorf("fallback category: got %q", resp.Items[0].Category)
	}
}

func TestProcessElementsEmptyBatch(t *testing.T) {
	r, _ := testRouter(t, &stubClient{})

	payload, _ := json.Marshal(processRequest{PageURL: "https://example.com/p"})
	if _, err := r.Call(context.Background(), bus.MsgProcessElements, payload); err == nil {
		t.Error("empty batch: want error")
	}
}

func TestProcessProgressive(t *testing.T) {
	r, _ := testRouter(t, &stubClient{})

	payload := []byte(`{"pageUrl":"https://example.com/p","pageTitle":"P"}`)
	var res pipeline.Result
	call(t, r, bus.MsgProcessProgressive, payload, &res)
	if len(res.Items) != 2 || res.TotalElements != 2 {
		t.Errorf("progressive result: %+v", res)
	}
}

func TestCacheMessages(t *testing.T) {
	r, c := testRouter(t, &stubClient{})

	var size cacheSizeResponse
	call(t, r, bus.MsgGetCacheSize, nil, &size)
	if size.Size != 0 {
		t.Errorf("initial size: got %d", size.Size)
	}

	// A toggle populates the cache for the page.
	var tg toggleResponse
	call(t, r, bus.MsgToggleSimplified, nil, &tg)

	call(t, r, bus.MsgGetCacheSize, nil, &size)
	if size.Size != 1 {
		t.Errorf("size after toggle: got %d, want 1", size.Size)
	}

	var ok successResponse
	call(t, r, bus.MsgClearCache, nil, &ok)
	if !ok.Success {
		t.Error("clear: want success")
	}
	if c.Len() != 0 {
		t.Errorf("cache len after clear: got %d", c.Len())
	}
}
