// Package ports define repository interfaces for data persistence abstraction.
// These interfaces enable the repository pattern and allow swapping persistence mechanisms.
package ports

import (
	"errors"

	"github.com/tejashwikalptaru/avscore/internal/domain"
)

// ErrPresetNotFound is returned when a named chain description does not exist.
var ErrPresetNotFound = errors.New("preset not found")

// PresetRepository stores chain descriptions by name.
// Implementations can use files, preferences, or in-memory storage.
//
// Thread-safety: Implementations must be thread-safe.
type PresetRepository interface {
	// Save persists a description under desc.Name.
	// If a description with the same name exists, it is replaced.
	Save(desc *domain.ChainDescription) error

	// Load retrieves a description by name.
	// If it doesn't exist, returns (nil, ErrPresetNotFound).
	Load(name string) (*domain.ChainDescription, error)

	// List returns the stored names in the order they were first saved.
	List() ([]string, error)

	// Delete removes a description by name.
	// If it doesn't exist, this is a no-op (no error).
	Delete(name string) error
}
