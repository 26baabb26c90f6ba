package executor

import "github.com/google/uuid"

// IDGenerator names compiled artifacts.
//
// Implementations must be safe for concurrent use.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 artifact IDs, so artifacts
// listed by ID appear in compilation order.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new UUIDv7 string.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
