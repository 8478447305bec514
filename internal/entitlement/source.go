package entitlement

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Request identifies whose snapshot to fetch.
type Request struct {
	Identity   string
	Credential string
}

// Source fetches usage snapshots. Implementations never return a nil
// Outcome and never panic on transport or decoding errors.
type Source interface {
	Fetch(ctx context.Context, req Request) Outcome
}

// MessageRecorder is implemented by sources that count usage locally.
type MessageRecorder interface {
	RecordMessage(ctx context.Context, identity string) error
}

// Mode selects the Source adapter.
type Mode string

const (
	// ModeBackend fetches snapshots from the backend of record.
	ModeBackend Mode = "backend"
	// ModeSimulated computes snapshots from a local trial store. It is an
	// offline demo mode only.
	ModeSimulated Mode = "simulated"
)

// Config configures NewSource.
type Config struct {
	Mode       Mode
	BaseURL    string
	StateDir   string
	HTTPClient *http.Client
	Logger     *slog.Logger
	Now        func() time.Time
}

// NewSource builds the adapter selected by cfg.Mode. The choice is made once;
// the two adapters are never mixed.
func NewSource(cfg Config) (Source, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	switch cfg.Mode {
	case ModeBackend, "":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("entitlement: backend mode requires a base URL")
		}
		return NewBackendSource(cfg.BaseURL, cfg.HTTPClient, cfg.Logger), nil
	case ModeSimulated:
		if cfg.StateDir == "" {
			return nil, fmt.Errorf("entitlement: simulated mode requires a state directory")
		}
		return NewSimulatedSource(cfg.StateDir, cfg.Now, cfg.Logger)
	default:
		return nil, fmt.Errorf("entitlement: unknown mode %q", cfg.Mode)
	}
}
