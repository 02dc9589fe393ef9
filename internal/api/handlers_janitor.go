package api

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/mattjoyce/catalogd/internal/janitor"
)

// handleListPolicies handles GET /janitor/policies.
func (s *Server) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, PoliciesResponse{Policies: s.janitor.Policies()})
}

// handleAnalyze handles POST /janitor/analyze.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req PathRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := checkJanitorPath(req.Path); msg != "" {
		s.writeError(w, http.StatusBadRequest, msg)
		return
	}

	res, err := s.janitor.Analyze(r.Context(), req.Path)
	if err != nil {
		s.janitorError(w, "analyze", err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// handleSuggest handles POST /janitor/suggest.
func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req SuggestRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := checkJanitorPath(req.Path); msg != "" {
		s.writeError(w, http.StatusBadRequest, msg)
		return
	}
	if req.Policy != "" && !s.knownPolicy(req.Policy) {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %q", janitor.ErrUnknownPolicy, req.Policy).Error())
		return
	}

	res, err := s.janitor.Suggest(r.Context(), req.Path, req.Policies)
	if err != nil {
		s.janitorError(w, "suggest", err)
		return
	}
	if req.Policy != "" {
		res = res.ForPolicy(req.Policy)
	}
	respondJSON(w, http.StatusOK, res)
}

// handleExecute handles POST /janitor/execute. Deletion only happens when
// dry_run is explicitly false.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Files == nil {
		s.writeError(w, http.StatusBadRequest, "files array required")
		return
	}

	dryRun := true
	if req.DryRun != nil {
		dryRun = *req.DryRun
	}
	respondJSON(w, http.StatusOK, s.janitor.Execute(r.Context(), req.Files, dryRun))
}

// checkJanitorPath returns a client error message, or "" when path is usable.
func checkJanitorPath(path string) string {
	if path == "" {
		return "path required"
	}
	if !filepath.IsAbs(path) {
		return fmt.Sprintf("path %q is not an absolute path", path)
	}
	return ""
}

func (s *Server) knownPolicy(id string) bool {
	for _, p := range s.janitor.Policies() {
		if p.ID == id {
			return true
		}
	}
	return false
}

func (s *Server) janitorError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, janitor.ErrPathRequired), errors.Is(err, janitor.ErrPathNotAbsolute), errors.Is(err, janitor.ErrUnknownPolicy):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("janitor "+op+" failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}
