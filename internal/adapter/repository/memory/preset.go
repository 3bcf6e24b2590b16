package memory

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"fyne.io/fyne/v2"

	"github.com/tejashwikalptaru/avscore/internal/domain"
	"github.com/tejashwikalptaru/avscore/internal/ports"
	"github.com/tejashwikalptaru/avscore/internal/preset"
)

const (
	presetKeyPrefix = "preset."
	presetNamesKey  = "preset._names"
)

// PresetRepository implements ports.PresetRepository using Fyne preferences.
// Descriptions are stored as YAML in preferences with keys like "preset.<name>".
//
// Thread-safe: All operations protected by sync.RWMutex.
type PresetRepository struct {
	prefs  fyne.Preferences
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewPresetRepository creates a new preset repository.
// The preferences parameter should be obtained from fyne.CurrentApp().Preferences().
func NewPresetRepository(prefs fyne.Preferences, logger *slog.Logger) *PresetRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PresetRepository{
		prefs:  prefs,
		logger: logger.With(slog.String("component", "preset_repository")),
	}
}

// Save persists a description under its name.
func (r *PresetRepository) Save(desc *domain.ChainDescription) error {
	if desc == nil || strings.TrimSpace(desc.Name) == "" {
		return domain.NewValidationError("name", "", "preset name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := preset.Encode(desc)
	if err != nil {
		return err
	}
	r.prefs.SetString(presetKeyPrefix+desc.Name, string(data))

	names, err := r.loadNames()
	if err != nil {
		// If loading fails, start with empty slice
		names = []string{}
	}
	if !contains(names, desc.Name) {
		names = append(names, desc.Name)
		if err := r.saveNames(names); err != nil {
			return err
		}
	}

	r.logger.Debug("preset saved", slog.String("name", desc.Name), slog.Int("nodes", len(desc.Nodes)))
	return nil
}

// Load retrieves a description by name.
func (r *PresetRepository) Load(name string) (*domain.ChainDescription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data := r.prefs.String(presetKeyPrefix + name)
	if data == "" {
		return nil, ports.ErrPresetNotFound
	}

	desc, err := preset.DecodeBytes([]byte(data))
	if err != nil {
		r.logger.Warn("preset corrupted", slog.String("name", name), slog.Any("error", err))
		return nil, err
	}
	if desc.Name == "" {
		desc.Name = name
	}
	return desc, nil
}

// List returns the stored names in the order they were first saved.
func (r *PresetRepository) List() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loadNames()
}

// Delete removes a description by name.
func (r *PresetRepository) Delete(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prefs.RemoveValue(presetKeyPrefix + name)

	names, err := r.loadNames()
	if err != nil {
		// If loading fails, start with empty slice
		names = []string{}
	}
	return r.saveNames(remove(names, name))
}

// Exists checks if a description with the given name exists.
func (r *PresetRepository) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.prefs.String(presetKeyPrefix+name) != ""
}

// loadNames loads the list of stored names.
// Must be called with lock held.
func (r *PresetRepository) loadNames() ([]string, error) {
	data := r.prefs.String(presetNamesKey)
	if data == "" {
		return []string{}, nil
	}

	var names []string
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil, domain.NewPresetError("list", -1, "failed to unmarshal names", err)
	}
	return names, nil
}

// saveNames saves the list of stored names.
// Must be called with lock held.
func (r *PresetRepository) saveNames(names []string) error {
	data, err := json.Marshal(names)
	if err != nil {
		return domain.NewPresetError("save", -1, "failed to marshal names", err)
	}
	r.prefs.SetString(presetNamesKey, string(data))
	return nil
}

// Helper functions

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func remove(slice []string, item string) []string {
	result := make([]string, 0, len(slice))
	for _, s := range slice {
		if s != item {
			result = append(result, s)
		}
	}
	return result
}

// Verify interface implementation
var _ ports.PresetRepository = (*PresetRepository)(nil)
