package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Simplici0/slabquote/internal/estimate"
	"github.com/Simplici0/slabquote/internal/metrics"
	"github.com/Simplici0/slabquote/internal/proposal"
	"github.com/Simplici0/slabquote/internal/records"
	"github.com/Simplici0/slabquote/internal/report"
)

const (
	maxBodyBytes  = 1 << 20
	isoTimeLayout = "2006-01-02T15:04:05.000Z"
	saveTimeout   = 10 * time.Second
)

// requestKeys are the body keys decoded into an estimateRequest. Matching is
// exact; encoding/json alone would also accept WIDTH_FT for width_ft.
var requestKeys = func() map[string]bool {
	keys := map[string]bool{"client_name": true, "generate_proposal": true}
	for _, name := range estimate.FieldNames() {
		keys[name] = true
	}
	return keys
}()

type server struct {
	calc      *estimate.Calculator
	store     records.Store
	proposals *proposal.Service
	now       func() time.Time
}

func newServer(calc *estimate.Calculator, store records.Store, proposals *proposal.Service) *server {
	return &server{
		calc:      calc,
		store:     store,
		proposals: proposals,
		now:       time.Now,
	}
}

// optionalString decodes a JSON string; anything else, and "", is absent.
type optionalString struct {
	value *string
}

func (o *optionalString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil && s != "" {
		o.value = &s
	}
	return nil
}

type estimateRequest struct {
	estimate.Input
	ClientName       optionalString `json:"client_name"`
	GenerateProposal estimate.Flag  `json:"generate_proposal"`
}

type estimateResponse struct {
	OK       bool            `json:"ok"`
	ID       string          `json:"id"`
	Estimate estimate.Result `json:"estimate"`
	Proposal *string         `json:"proposal"`
}

type listResponse struct {
	OK    bool             `json:"ok"`
	Items []records.Record `json:"items"`
}

type itemResponse struct {
	OK   bool           `json:"ok"`
	Item records.Record `json:"item"`
}

type healthResponse struct {
	OK  bool   `json:"ok"`
	Now string `json:"now"`
}

type ratesResponse struct {
	OK    bool           `json:"ok"`
	Rates estimate.Rates `json:"rates"`
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// handleEstimate computes an estimate, optionally asks for a proposal, and
// records the result before responding.
func (s *server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	req, params, err := decodeEstimateRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := s.calc.Calculate(req.Input)
	if !result.Finite() {
		writeError(w, http.StatusUnprocessableEntity, "estimate figures are out of range")
		return
	}
	metrics.EstimatesComputed.Inc()
	metrics.EstimateTotal.Observe(result.Summary.Total)

	clientName := ""
	if req.ClientName.value != nil {
		clientName = *req.ClientName.value
	}

	var proposalText *string
	if req.GenerateProposal {
		proposalText = s.proposals.Propose(r.Context(), result, clientName)
	}

	// The estimate is recorded even if the client went away during the
	// proposal call.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), saveTimeout)
	defer cancel()

	rec := records.NewRecord(req.ClientName.value, params, result)
	if err := s.store.Append(saveCtx, rec); err != nil {
		metrics.StoreErrors.WithLabelValues("append").Inc()
		slog.Error("failed to save estimate", "id", rec.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save estimate")
		return
	}

	slog.Info("estimate saved",
		"id", rec.ID,
		"area_sqft", result.Inputs.AreaSqft,
		"total", result.Summary.Total,
		"proposal", proposalText != nil,
	)

	writeJSON(w, http.StatusOK, estimateResponse{
		OK:       true,
		ID:       rec.ID,
		Estimate: result,
		Proposal: proposalText,
	})
}

// decodeEstimateRequest parses the body leniently. It returns the submitted
// input object, without the request-only keys, for the record's params.
func decodeEstimateRequest(r *http.Request) (estimateRequest, json.RawMessage, error) {
	var req estimateRequest

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return req, nil, errors.New("could not read request body")
	}
	if len(raw) > maxBodyBytes {
		return req, nil, errors.New("request body too large")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return req, nil, errors.New("request body must be a JSON object")
	}
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}

	known := make(map[string]json.RawMessage, len(fields))
	for key, value := range fields {
		if requestKeys[key] {
			known[key] = value
		}
	}
	knownJSON, err := json.Marshal(known)
	if err != nil {
		return req, nil, errors.New("could not encode request fields")
	}
	if err := json.Unmarshal(knownJSON, &req); err != nil {
		return req, nil, errors.New("request body must be a JSON object")
	}

	delete(fields, "client_name")
	delete(fields, "generate_proposal")
	params, err := json.Marshal(fields)
	if err != nil {
		return req, nil, errors.New("could not encode params")
	}

	return req, params, nil
}

// handleListEstimates returns the newest records. A store failure reads as
// an empty history.
func (s *server) handleListEstimates(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListRecent(r.Context(), records.DefaultListLimit)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("list").Inc()
		slog.Warn("failed to read estimate history", "error", err)
		items = []records.Record{}
	}

	writeJSON(w, http.StatusOK, listResponse{OK: true, Items: items})
}

func (s *server) handleGetEstimate(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookupRecord(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, itemResponse{OK: true, Item: rec})
}

// handleEstimatePDF renders one record. With ?proposal=true a fresh
// proposal is requested and printed below the figures when available.
func (s *server) handleEstimatePDF(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookupRecord(w, r)
	if !ok {
		return
	}

	proposalText := ""
	if r.URL.Query().Get("proposal") == "true" {
		clientName := ""
		if rec.ClientName != nil {
			clientName = *rec.ClientName
		}
		if text := s.proposals.Propose(r.Context(), rec.Estimate, clientName); text != nil {
			proposalText = *text
		}
	}

	var buf bytes.Buffer
	if err := report.WritePDF(&buf, rec, proposalText); err != nil {
		slog.Error("failed to render estimate pdf", "id", rec.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to render pdf")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"estimate-%s.pdf\"", rec.ID))
	_, _ = w.Write(buf.Bytes())
}

func (s *server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListRecent(r.Context(), records.DefaultListLimit)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("list").Inc()
		slog.Error("failed to read estimate history for export", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load estimates")
		return
	}

	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, items); err != nil {
		slog.Error("failed to render estimate export", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to render export")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="estimates.xlsx"`)
	_, _ = w.Write(buf.Bytes())
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		OK:  true,
		Now: s.now().UTC().Format(isoTimeLayout),
	})
}

func (s *server) handleRates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ratesResponse{OK: true, Rates: s.calc.Rates()})
}

func (s *server) lookupRecord(w http.ResponseWriter, r *http.Request) (records.Record, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid estimate id")
		return records.Record{}, false
	}

	rec, err := s.store.Get(r.Context(), id)
	if errors.Is(err, records.ErrNotFound) {
		writeError(w, http.StatusNotFound, "estimate not found")
		return records.Record{}, false
	}
	if err != nil {
		metrics.StoreErrors.WithLabelValues("get").Inc()
		slog.Error("failed to load estimate", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load estimate")
		return records.Record{}, false
	}
	return rec, true
}

// writeJSON encodes v before writing so an encoding failure can still be
// reported as a 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
		body, _ = json.Marshal(errorResponse{OK: false, Error: "failed to encode response"})
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{OK: false, Error: message})
}
