package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/arbscan/internal/domain"
	"github.com/alanyoungcy/arbscan/internal/scan"
)

const maxBodyBytes = 1 << 16

// Scanner runs one scan per call.
type Scanner interface {
	Run(ctx context.Context, req scan.Request) scan.Result
}

// ScanHandler serves the scan endpoint. Every response is HTTP 200 with a
// scan.Result; failures are reported in its error field.
type ScanHandler struct {
	scanner  Scanner
	defaults scan.Request
	logger   *slog.Logger
}

// NewScanHandler creates a ScanHandler. defaults fills parameters the
// request leaves out.
func NewScanHandler(scanner Scanner, defaults scan.Request, logger *slog.Logger) *ScanHandler {
	return &ScanHandler{
		scanner:  scanner,
		defaults: defaults,
		logger:   logger.With(slog.String("handler", "scan")),
	}
}

// Scan runs a scan with parameters from the query string and, for POST, a
// JSON body whose fields take precedence.
// GET|POST /api/scan?category=politics&minSpreadPercent=2&maxMarketsPerPlatform=100&minMatchScore=70&debug=true
func (h *ScanHandler) Scan(w http.ResponseWriter, r *http.Request) {
	req := h.defaults
	queryFloat(r, "minSpreadPercent", &req.MinSpreadPercent)
	queryInt(r, "maxMarketsPerPlatform", &req.MaxMarketsPerPlatform)
	queryFloat(r, "minMatchScore", &req.MinMatchScore)
	queryBool(r, "debug", &req.Debug)
	if c := r.URL.Query().Get("category"); c != "" {
		req.Category = c
	}

	if r.Method == http.MethodPost && r.Body != nil {
		dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
		if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			h.logger.Warn("scan: bad request body", slog.String("error", err.Error()))
			req = req.Normalize()
			writeJSON(w, http.StatusOK, scan.Result{
				Opportunities:    []domain.Opportunity{},
				Category:         req.Category,
				MinSpreadPercent: req.MinSpreadPercent,
				Timestamp:        time.Now().UTC(),
				Error:            "invalid request body: " + err.Error(),
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, h.scanner.Run(r.Context(), req))
}
