package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/Simplici0/slabquote/internal/estimate"
	"github.com/Simplici0/slabquote/internal/proposal"
	"github.com/Simplici0/slabquote/internal/records"
)

type fakeGenerator struct {
	text string
	err  error

	mu         sync.Mutex
	calls      int
	clientName string
}

func (f *fakeGenerator) Generate(_ context.Context, _ estimate.Result, clientName string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.clientName = clientName
	return f.text, f.err
}

var errStoreDown = errors.New("store is down")

type failingStore struct{}

func (failingStore) Append(context.Context, records.Record) error { return errStoreDown }
func (failingStore) ListRecent(context.Context, int) ([]records.Record, error) {
	return nil, errStoreDown
}
func (failingStore) Get(context.Context, string) (records.Record, error) {
	return records.Record{}, errStoreDown
}
func (failingStore) Close() error { return nil }

type apiResponse struct {
	OK       bool             `json:"ok"`
	ID       string           `json:"id"`
	Error    string           `json:"error"`
	Estimate estimate.Result  `json:"estimate"`
	Proposal *string          `json:"proposal"`
	Items    []records.Record `json:"items"`
	Item     records.Record   `json:"item"`
	Now      string           `json:"now"`
	Rates    estimate.Rates   `json:"rates"`
}

func newTestStore(t *testing.T) records.Store {
	t.Helper()

	store, err := records.OpenSQLite(filepath.Join(t.TempDir(), "estimates.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestHandler(t *testing.T, store records.Store, gen proposal.Generator, limiter *IPRateLimiter) http.Handler {
	t.Helper()

	srv := newServer(
		estimate.NewCalculator(estimate.DefaultRates()),
		store,
		proposal.NewService(gen, "fake", time.Second),
	)
	srv.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 123_000_000, time.UTC) }
	return srv.routes("", limiter)
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp apiResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, resp
}

func TestHandleEstimateComputesAndRecords(t *testing.T) {
	store := newTestStore(t)
	h := newTestHandler(t, store, nil, nil)

	rec, resp := doRequest(t, h, http.MethodPost, "/api/estimate",
		`{"width_ft":20,"length_ft":20,"thickness_in":4,"client_name":"Acme Builders"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !resp.OK || resp.ID == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Estimate.Summary.Total != 2925.46 {
		t.Fatalf("total = %v, want 2925.46", resp.Estimate.Summary.Total)
	}
	if resp.Proposal != nil {
		t.Fatalf("expected null proposal, got %q", *resp.Proposal)
	}
	if !strings.Contains(rec.Body.String(), `"proposal":null`) {
		t.Fatalf("expected explicit null proposal in %s", rec.Body.String())
	}

	_, list := doRequest(t, h, http.MethodGet, "/api/estimates", "")
	if !list.OK || len(list.Items) != 1 {
		t.Fatalf("expected one recorded estimate, got %+v", list)
	}

	item := list.Items[0]
	if item.ID != resp.ID {
		t.Fatalf("recorded id = %s, want %s", item.ID, resp.ID)
	}
	if item.ClientName == nil || *item.ClientName != "Acme Builders" {
		t.Fatalf("unexpected client name: %v", item.ClientName)
	}
	if item.Estimate.Summary.Total != 2925.46 {
		t.Fatalf("recorded total = %v", item.Estimate.Summary.Total)
	}

	var params map[string]any
	if err := json.Unmarshal(item.Params, &params); err != nil {
		t.Fatalf("decode params: %v", err)
	}
	if _, ok := params["client_name"]; ok {
		t.Fatalf("params should not carry client_name: %v", params)
	}
	if params["width_ft"] != float64(20) {
		t.Fatalf("params = %v", params)
	}
}

func TestHandleEstimateEmptyBodyIsDegenerateEstimate(t *testing.T) {
	h := newTestHandler(t, newTestStore(t), nil, nil)

	rec, resp := doRequest(t, h, http.MethodPost, "/api/estimate", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp.Estimate.Inputs.AreaSqft != 0 || resp.Estimate.Summary.Total != 0 {
		t.Fatalf("expected zero estimate, got %+v", resp.Estimate)
	}
	if resp.Estimate.Inputs.ThicknessIn != 4 {
		t.Fatalf("thickness = %v, want default 4", resp.Estimate.Inputs.ThicknessIn)
	}
}

func TestHandleEstimateWithProposal(t *testing.T) {
	gen := &fakeGenerator{text: "Dear Acme, here is your slab."}
	h := newTestHandler(t, newTestStore(t), gen, nil)

	rec, resp := doRequest(t, h, http.MethodPost, "/api/estimate",
		`{"width_ft":"20","length_ft":20,"client_name":"Acme","generate_proposal":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp.Proposal == nil || *resp.Proposal != gen.text {
		t.Fatalf("unexpected proposal: %v", resp.Proposal)
	}
	if gen.calls != 1 || gen.clientName != "Acme" {
		t.Fatalf("generator calls=%d clientName=%q", gen.calls, gen.clientName)
	}
}

func TestHandleEstimateProposalOnlyWhenRequested(t *testing.T) {
	gen := &fakeGenerator{text: "unused"}
	h := newTestHandler(t, newTestStore(t), gen, nil)

	for _, flag := range []string{`false`, `"yes"`, `1`} {
		_, resp := doRequest(t, h, http.MethodPost, "/api/estimate", `{"width_ft":10,"length_ft":10,"generate_proposal":`+flag+`}`)
		if resp.Proposal != nil {
			t.Fatalf("generate_proposal=%s: expected no proposal", flag)
		}
	}
	if gen.calls != 0 {
		t.Fatalf("expected generator not to be called, got %d calls", gen.calls)
	}
}

func TestHandleEstimateProposalFailureStillSucceeds(t *testing.T) {
	store := newTestStore(t)
	gen := &fakeGenerator{err: errors.New("upstream 503")}
	h := newTestHandler(t, store, gen, nil)

	rec, resp := doRequest(t, h, http.MethodPost, "/api/estimate",
		`{"width_ft":20,"length_ft":20,"generate_proposal":"true"}`)
	if rec.Code != http.StatusOK || !resp.OK {
		t.Fatalf("expected success, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp.Proposal != nil {
		t.Fatalf("expected null proposal, got %q", *resp.Proposal)
	}

	items, err := store.ListRecent(context.Background(), records.DefaultListLimit)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected the estimate to be recorded, got %d", len(items))
	}
}

func TestHandleEstimateMalformedJSON(t *testing.T) {
	store := newTestStore(t)
	h := newTestHandler(t, store, nil, nil)

	for _, body := range []string{`{"width_ft":`, `[1,2]`, `"text"`} {
		rec, resp := doRequest(t, h, http.MethodPost, "/api/estimate", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, rec.Code)
		}
		if resp.OK || resp.Error == "" {
			t.Fatalf("body %q: unexpected response %+v", body, resp)
		}
	}

	items, err := store.ListRecent(context.Background(), records.DefaultListLimit)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("rejected requests must not be recorded, got %d", len(items))
	}
}

func TestHandleEstimateStoreFailure(t *testing.T) {
	h := newTestHandler(t, failingStore{}, nil, nil)

	rec, resp := doRequest(t, h, http.MethodPost, "/api/estimate", `{"width_ft":20,"length_ft":20}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if resp.OK || resp.Error == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestHandleListEstimatesReadFailureIsEmpty(t *testing.T) {
	h := newTestHandler(t, failingStore{}, nil, nil)

	rec, resp := doRequest(t, h, http.MethodGet, "/api/estimates", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !resp.OK || resp.Items == nil || len(resp.Items) != 0 {
		t.Fatalf("expected ok with empty items, got %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"items":[]`) {
		t.Fatalf("expected an empty array, got %s", rec.Body.String())
	}
}

func TestHandleListEstimatesNewestFirst(t *testing.T) {
	h := newTestHandler(t, newTestStore(t), nil, nil)

	var ids []string
	for _, width := range []string{"10", "20", "30"} {
		_, resp := doRequest(t, h, http.MethodPost, "/api/estimate", `{"width_ft":`+width+`,"length_ft":10}`)
		ids = append(ids, resp.ID)
		time.Sleep(2 * time.Millisecond)
	}

	_, list := doRequest(t, h, http.MethodGet, "/api/estimates", "")
	if len(list.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(list.Items))
	}
	if list.Items[0].ID != ids[2] || list.Items[2].ID != ids[0] {
		t.Fatalf("items are not newest first")
	}
}

func TestHandleGetEstimate(t *testing.T) {
	h := newTestHandler(t, newTestStore(t), nil, nil)

	_, created := doRequest(t, h, http.MethodPost, "/api/estimate", `{"width_ft":20,"length_ft":20}`)

	rec, resp := doRequest(t, h, http.MethodGet, "/api/estimates/"+created.ID, "")
	if rec.Code != http.StatusOK || resp.Item.ID != created.ID {
		t.Fatalf("expected record %s, got %d: %s", created.ID, rec.Code, rec.Body.String())
	}

	rec, resp = doRequest(t, h, http.MethodGet, "/api/estimates/does-not-exist", "")
	if rec.Code != http.StatusNotFound || resp.OK {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleEstimatePDF(t *testing.T) {
	gen := &fakeGenerator{text: "Proposal body"}
	h := newTestHandler(t, newTestStore(t), gen, nil)

	_, created := doRequest(t, h, http.MethodPost, "/api/estimate", `{"width_ft":20,"length_ft":20,"client_name":"Acme"}`)

	rec, _ := doRequest(t, h, http.MethodGet, "/api/estimates/"+created.ID+"/pdf?proposal=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("response is not a pdf")
	}
	if gen.calls != 1 || gen.clientName != "Acme" {
		t.Fatalf("expected one proposal call for Acme, got calls=%d clientName=%q", gen.calls, gen.clientName)
	}
}

func TestHandleExportXLSX(t *testing.T) {
	h := newTestHandler(t, newTestStore(t), nil, nil)
	doRequest(t, h, http.MethodPost, "/api/estimate", `{"width_ft":20,"length_ft":20}`)

	rec, _ := doRequest(t, h, http.MethodGet, "/api/estimates/export.xlsx", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Header().Get("Content-Type"), "spreadsheetml") {
		t.Fatalf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}
	// xlsx files are zip archives.
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Fatalf("response is not an xlsx archive")
	}
}

func TestHandleHealth(t *testing.T) {
	h := newTestHandler(t, newTestStore(t), nil, nil)

	rec, resp := doRequest(t, h, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK || !resp.OK {
		t.Fatalf("unexpected health response: %d %s", rec.Code, rec.Body.String())
	}
	if resp.Now != "2024-05-06T07:08:09.123Z" {
		t.Fatalf("now = %q", resp.Now)
	}
}

func TestHandleRates(t *testing.T) {
	h := newTestHandler(t, newTestStore(t), nil, nil)

	_, resp := doRequest(t, h, http.MethodGet, "/api/rates", "")
	if !resp.OK || resp.Rates != estimate.DefaultRates() {
		t.Fatalf("unexpected rates: %+v", resp.Rates)
	}
}

func TestEstimateRateLimit(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Limit(0.001), 1)
	h := newTestHandler(t, newTestStore(t), nil, limiter)

	rec, _ := doRequest(t, h, http.MethodPost, "/api/estimate", `{"width_ft":1,"length_ft":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rec.Code)
	}

	rec, resp := doRequest(t, h, http.MethodPost, "/api/estimate", `{"width_ft":1,"length_ft":1}`)
	if rec.Code != http.StatusTooManyRequests || resp.OK {
		t.Fatalf("second request: expected 429, got %d", rec.Code)
	}

	rec, _ = doRequest(t, h, http.MethodGet, "/api/estimates", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reads must not be limited, got %d", rec.Code)
	}
}

func TestRecovererReturnsJSON(t *testing.T) {
	h := recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var resp apiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.OK {
		t.Fatalf("expected JSON error body, got %s", rec.Body.String())
	}
}

// cancelingGenerator drops the client connection while the proposal is
// being written.
type cancelingGenerator struct {
	cancel context.CancelFunc
}

func (g cancelingGenerator) Generate(ctx context.Context, _ estimate.Result, _ string) (string, error) {
	g.cancel()
	<-ctx.Done()
	return "", ctx.Err()
}

func TestHandleEstimateRecordsAfterClientDisconnect(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := newTestHandler(t, store, cancelingGenerator{cancel: cancel}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/estimate",
		strings.NewReader(`{"width_ft":20,"length_ft":20,"generate_proposal":true}`)).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp apiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.OK || resp.Proposal != nil {
		t.Fatalf("unexpected response: %s", rec.Body.String())
	}

	items, err := store.ListRecent(context.Background(), records.DefaultListLimit)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].ID != resp.ID {
		t.Fatalf("expected the estimate to be recorded, got %d records", len(items))
	}
}

func TestHandleEstimateOverflowIsRejected(t *testing.T) {
	store := newTestStore(t)
	gen := &fakeGenerator{text: "unused"}
	h := newTestHandler(t, store, gen, nil)

	rec, resp := doRequest(t, h, http.MethodPost, "/api/estimate",
		`{"width_ft":1e200,"length_ft":1e200,"generate_proposal":true}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp.OK || !strings.Contains(resp.Error, "out of range") {
		t.Fatalf("unexpected response: %s", rec.Body.String())
	}
	if gen.calls != 0 {
		t.Fatalf("expected no proposal call, got %d", gen.calls)
	}

	items, err := store.ListRecent(context.Background(), records.DefaultListLimit)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected nothing recorded, got %d", len(items))
	}
}

func TestHandleEstimateKeysMatchExactly(t *testing.T) {
	store := newTestStore(t)
	h := newTestHandler(t, store, nil, nil)

	rec, resp := doRequest(t, h, http.MethodPost, "/api/estimate",
		`{"WIDTH_FT":10,"length_ft":10,"Client_Name":"Shouty","GENERATE_PROPOSAL":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp.Estimate.Inputs.WidthFt != 0 || resp.Estimate.Inputs.AreaSqft != 0 {
		t.Fatalf("WIDTH_FT must not be read as width_ft: %+v", resp.Estimate.Inputs)
	}
	if resp.Proposal != nil {
		t.Fatalf("GENERATE_PROPOSAL must not request a proposal")
	}

	items, err := store.ListRecent(context.Background(), records.DefaultListLimit)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one record, got %d", len(items))
	}
	if items[0].ClientName != nil {
		t.Fatalf("Client_Name must not be read as client_name, got %q", *items[0].ClientName)
	}

	var params map[string]any
	if err := json.Unmarshal(items[0].Params, &params); err != nil {
		t.Fatalf("decode params: %v", err)
	}
	if params["WIDTH_FT"] != float64(10) || params["Client_Name"] != "Shouty" {
		t.Fatalf("params should keep the submitted keys: %v", params)
	}
}

func TestEstimateRateLimitIgnoresForwardedHeaders(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Limit(0.001), 1)
	h := newTestHandler(t, newTestStore(t), nil, limiter)

	accepted := 0
	for i := 1; i <= 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/estimate", strings.NewReader(`{"width_ft":1,"length_ft":1}`))
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("10.0.1.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusOK {
			accepted++
		}
	}

	if accepted != 1 {
		t.Fatalf("accepted %d of 20 requests from one connection address, want 1", accepted)
	}
	if n := limiter.tracked(); n != 1 {
		t.Fatalf("expected one tracked address, got %d", n)
	}
}
