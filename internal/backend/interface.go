package backend

import (
	"context"

	"github.com/cityteam/stats-sub000/internal/services"
	"github.com/cityteam/stats-sub000/internal/storage"
)

// CleanupFunc releases the resources a backend holds.
type CleanupFunc func() error

// BackendResult is a ready repository plus the optional event publisher
// that goes with it.
type BackendResult struct {
	Repository storage.Repository
	// Events is nil when no AMQP broker is configured.
	Events  services.EventPublisher
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Events, optional for every backend type
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
