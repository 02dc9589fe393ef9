package scheduler

import (
	"context"

	"github.com/mattjoyce/catalogd/internal/scan"
)

//go:generate mockgen -destination=mocks/mock_starter.go -package=mocks github.com/mattjoyce/catalogd/internal/scheduler ScanStarter

// ScanStarter defines the scan operations used by the scheduler.
type ScanStarter interface {
	Start(ctx context.Context, cfg scan.Config) (string, error)
	IsLive(id string) bool
}

// Publisher receives scheduler events.
type Publisher interface {
	Publish(eventType string, data any)
}
