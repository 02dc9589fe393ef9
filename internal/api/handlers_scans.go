package api

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/catalogd/internal/catalog"
	"github.com/mattjoyce/catalogd/internal/scan"
)

// handleStartScan handles POST /scans.
func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	var req StartScanRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg, err := s.scanConfig(req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.scans.Start(r.Context(), cfg)
	if errors.Is(err, scan.ErrNoRoots) {
		s.writeError(w, http.StatusBadRequest, "no roots")
		return
	}
	if err != nil {
		s.logger.Error("failed to start scan", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to start scan")
		return
	}

	respondJSON(w, http.StatusAccepted, StartScanResponse{ScanID: id, Status: scan.StatusRunning})
}

func (s *Server) scanConfig(req StartScanRequest) (scan.Config, error) {
	d := s.config.Scanner
	cfg := scan.Config{
		ID:            req.ScanID,
		Roots:         req.Roots,
		IncludeExt:    req.IncludeExt,
		ExcludeExt:    req.ExcludeExt,
		BatchSize:     req.BatchSize,
		ComputeHashes: d.ComputeHashes,
		HashMaxSize:   req.HashMaxSize,
		ReuseHashes:   d.ReuseHashes,
	}
	if req.ComputeHashes != nil {
		cfg.ComputeHashes = *req.ComputeHashes
	}
	if req.ReuseHashes != nil {
		cfg.ReuseHashes = *req.ReuseHashes
	}
	if req.BatchSize < 0 {
		return cfg, fmt.Errorf("batch_size must not be negative")
	}
	for _, root := range req.Roots {
		if !filepath.IsAbs(root) {
			return cfg, fmt.Errorf("root %q is not an absolute path", root)
		}
	}
	return cfg, nil
}

// handleListScans handles GET /scans.
func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	jobs, err := s.scans.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list scans", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list scans")
		return
	}
	if jobs == nil {
		jobs = []*scan.Job{}
	}
	respondJSON(w, http.StatusOK, ListScansResponse{Scans: jobs})
}

// handleGetScan handles GET /scans/{scanID}.
func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "scanID")

	job, err := s.scans.Status(r.Context(), id)
	if errors.Is(err, scan.ErrScanNotFound) {
		s.writeError(w, http.StatusNotFound, "scan not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get scan", "scan_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get scan")
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// handleStopScan handles POST /scans/{scanID}/stop.
func (s *Server) handleStopScan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "scanID")
	respondJSON(w, http.StatusOK, StopScanResponse{ScanID: id, Accepted: s.scans.Stop(id)})
}

// handleGetCatalogRecord handles GET /catalog?path=.
func (s *Server) handleGetCatalogRecord(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "path required")
		return
	}

	rec, err := s.catalog.Get(r.Context(), path)
	if errors.Is(err, catalog.ErrRecordNotFound) {
		s.writeError(w, http.StatusNotFound, "file not cataloged")
		return
	}
	if err != nil {
		s.logger.Error("catalog lookup failed", "path", path, "error", err)
		s.writeError(w, http.StatusInternalServerError, "catalog lookup failed")
		return
	}
	respondJSON(w, http.StatusOK, rec)
}
