package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/jorseph/tw-stock/internal/contracts"
	"github.com/jorseph/tw-stock/internal/scanner"
	"github.com/jorseph/tw-stock/pkg/config"
	"github.com/jorseph/tw-stock/pkg/logger"
)

// ScanHandler handles scan control API endpoints
// ⭐ SSOT: 掃描 API 處理只在這個結構
type ScanHandler struct {
	runner *scanner.Runner
	cfg    config.ScanConfig
	logger *logger.Logger
}

// NewScanHandler creates a new scan handler
func NewScanHandler(runner *scanner.Runner, cfg config.ScanConfig, log *logger.Logger) *ScanHandler {
	return &ScanHandler{
		runner: runner,
		cfg:    cfg,
		logger: log,
	}
}

// StartResponse acknowledges an accepted scan request
type StartResponse struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// Start kicks off a background scan
// POST /api/scan/start?count=10
func (h *ScanHandler) Start(w http.ResponseWriter, r *http.Request) {
	count := h.cfg.ResultMax
	if countStr := r.URL.Query().Get("count"); countStr != "" {
		c, err := strconv.Atoi(countStr)
		if err != nil || c < 1 || c > h.cfg.ResultMax {
			respondError(w, http.StatusBadRequest, "count must be between 1 and "+strconv.Itoa(h.cfg.ResultMax))
			return
		}
		count = c
	}

	// Detached from the request: the scan outlives the HTTP call and is
	// followed via /api/scan/status or the WebSocket stream. The claim is
	// synchronous, so a racing second start gets the 409.
	if err := h.runner.ScanAsync(context.Background(), count); err != nil {
		if errors.Is(err, contracts.ErrScanInProgress) {
			respondError(w, http.StatusConflict, "a scan is already in progress")
			return
		}
		h.logger.WithError(err).Error("Failed to start scan")
		respondError(w, http.StatusInternalServerError, "failed to start scan")
		return
	}

	respondJSON(w, http.StatusAccepted, StartResponse{
		Status: "started",
		Count:  count,
	})
}

// Cancel requests cancellation of the running scan
// POST /api/scan/cancel
func (h *ScanHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h.runner.Status() != contracts.ScanRunning {
		respondError(w, http.StatusConflict, "no scan is in progress")
		return
	}

	h.runner.Cancel()

	respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "cancelling",
	})
}

// StatusResponse summarizes the runner state
type StatusResponse struct {
	Status    contracts.ScanStatus `json:"status"`
	Processed int                  `json:"processed,omitempty"`
	Total     int                  `json:"total,omitempty"`
	Passed    int                  `json:"passed,omitempty"`
}

// GetStatus returns the current runner state
// GET /api/scan/status
func (h *ScanHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Status: h.runner.Status()}

	if last := h.runner.LastResult(); last != nil && resp.Status == contracts.ScanIdle {
		resp.Status = last.Status
		resp.Processed = last.Processed
		resp.Total = last.Total
		resp.Passed = len(last.Candidates)
	}

	respondJSON(w, http.StatusOK, resp)
}

// GetResults returns the outcome of the most recent completed scan
// GET /api/scan/results
func (h *ScanHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	last := h.runner.LastResult()
	if last == nil {
		respondError(w, http.StatusNotFound, "no scan has completed yet")
		return
	}

	respondJSON(w, http.StatusOK, last)
}
