package domain

import (
	"fmt"
	"time"
)

// SpecFormat identifies the source serialization of an uploaded specification.
type SpecFormat string

const (
	SpecFormatJSON SpecFormat = "json"
	SpecFormatYAML SpecFormat = "yaml"
)

// Specification is the stored record for one ingested OpenAPI document.
// The raw bytes live in the spec store keyed by ID; this row carries the
// metadata extracted at ingestion time. A re-upload creates a new ID.
type Specification struct {
	ID          string
	Title       string
	Version     string
	Description string
	Format      SpecFormat
	SizeBytes   int64
	ChunkCount  int
	CreatedAt   time.Time
}

// NewSpecification creates a Specification record.
func NewSpecification(id string, format SpecFormat, sizeBytes int64) *Specification {
	return &Specification{
		ID:        id,
		Format:    format,
		SizeBytes: sizeBytes,
		CreatedAt: time.Now().UTC(),
	}
}

// ValidateSpecification validates a Specification instance.
func ValidateSpecification(s *Specification) error {
	if s == nil {
		return fmt.Errorf("specification cannot be nil")
	}
	if s.ID == "" {
		return fmt.Errorf("specification ID is required")
	}
	if !isValidSpecFormat(s.Format) {
		return fmt.Errorf("specification format is invalid: %s", s.Format)
	}
	if s.SizeBytes < 0 {
		return fmt.Errorf("specification size cannot be negative")
	}
	return nil
}

func isValidSpecFormat(f SpecFormat) bool {
	switch f {
	case SpecFormatJSON, SpecFormatYAML:
		return true
	}
	return false
}
