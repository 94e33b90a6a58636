// Package uuid provides run ID generation helpers.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates UUID v7 strings.
type Generator struct{}

// NewGenerator creates a new Generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// NewID returns a UUID7 string, used to tag one crawl run in logs and
// reports.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}
