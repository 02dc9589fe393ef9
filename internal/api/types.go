package api

import (
	"github.com/mattjoyce/catalogd/internal/janitor"
	"github.com/mattjoyce/catalogd/internal/scan"
)

// StartScanRequest is the JSON body for POST /scans. Omitted fields take the
// scanner defaults from configuration.
type StartScanRequest struct {
	ScanID        string   `json:"scan_id,omitempty"`
	Roots         []string `json:"roots"`
	IncludeExt    []string `json:"include_ext,omitempty"`
	ExcludeExt    []string `json:"exclude_ext,omitempty"`
	BatchSize     int      `json:"batch_size,omitempty"`
	ComputeHashes *bool    `json:"compute_hashes,omitempty"`
	HashMaxSize   int64    `json:"hash_max_size,omitempty"`
	ReuseHashes   *bool    `json:"reuse_hashes,omitempty"`
}

// StartScanResponse is returned when a scan is accepted.
type StartScanResponse struct {
	ScanID string      `json:"scan_id"`
	Status scan.Status `json:"status"`
}

// StopScanResponse is returned by POST /scans/{id}/stop.
type StopScanResponse struct {
	ScanID   string `json:"scan_id"`
	Accepted bool   `json:"accepted"`
}

// ListScansResponse is returned by GET /scans.
type ListScansResponse struct {
	Scans []*scan.Job `json:"scans"`
}

// PathRequest is the body of analyze.
type PathRequest struct {
	Path string `json:"path"`
}

// SuggestRequest is the body of suggest. Policy narrows the response to one
// policy's suggestions.
type SuggestRequest struct {
	Path     string   `json:"path"`
	Policies []string `json:"policies,omitempty"`
	Policy   string   `json:"policy,omitempty"`
}

// ExecuteRequest is the body of execute. DryRun defaults to true.
type ExecuteRequest struct {
	Files  []string `json:"files"`
	DryRun *bool    `json:"dry_run,omitempty"`
}

// PoliciesResponse is returned by GET /janitor/policies.
type PoliciesResponse struct {
	Policies []janitor.Policy `json:"policies"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	LiveScans     int    `json:"live_scans"`
	CatalogFiles  int64  `json:"catalog_files"`
}
