// Package artifacts manages the on-disk registry of trained per-role model
// and scaler pairs.
//
// Each role owns exactly two files under the store directory, named from the
// role's normalized slug: lstm_<slug>.json holding the serialized sequence
// model and scaler_<slug>.json holding the fitted value scaler. Their joint
// loadability is the entire contract between the training pipeline and the
// forecast policy; there is no version field, so a breaking weight-format
// change requires wiping the directory.
//
// Loads are lazy and cached for the process lifetime with per-slug
// single-flight: the first caller performs the disk read and concurrent
// callers for the same role wait on that result instead of re-deserializing.
// Artifacts are never evicted at runtime; they change only by rerunning the
// training pipeline while the process is stopped.
package artifacts

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/hirelens/hirelens/pkg/models"
)

// Slug normalizes a role name into a filesystem-friendly key: trimmed,
// lower-cased, spaces to underscores, slashes to hyphens.
func Slug(role string) string {
	s := strings.ToLower(strings.TrimSpace(role))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "/", "-")
	return s
}

// Store is the process-lifetime artifact registry. The zero value is not
// usable; create one with NewStore.
type Store struct {
	dir    string
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

// entry carries one role's cached artifact pair. once guarantees a single
// disk load per slug regardless of concurrent callers.
type entry struct {
	once   sync.Once
	model  *models.LSTM
	scaler *models.MinMaxScaler
	ok     bool
}

// NewStore creates an artifact store rooted at dir.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		dir:     dir,
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// ModelPath returns the model file path for a role.
func (s *Store) ModelPath(role string) string {
	return filepath.Join(s.dir, "lstm_"+Slug(role)+".json")
}

// ScalerPath returns the scaler file path for a role.
func (s *Store) ScalerPath(role string) string {
	return filepath.Join(s.dir, "scaler_"+Slug(role)+".json")
}

// Load returns the cached or freshly loaded artifact pair for a role.
//
// A missing file pair is not an error: it reports (nil, nil, false) with a
// warning, and callers must fall back to a non-model tier. A pair that exists
// but fails to deserialize, or a partial pair with only one file present, is
// treated identically: logged and degraded to absent rather than propagated.
func (s *Store) Load(role string) (*models.LSTM, *models.MinMaxScaler, bool) {
	slug := Slug(role)

	s.mu.Lock()
	e, exists := s.entries[slug]
	if !exists {
		e = &entry{}
		s.entries[slug] = e
	}
	s.mu.Unlock()

	e.once.Do(func() {
		e.model, e.scaler, e.ok = s.loadFromDisk(role, slug)
	})
	return e.model, e.scaler, e.ok
}

// loadFromDisk reads and validates one artifact pair.
func (s *Store) loadFromDisk(role, slug string) (*models.LSTM, *models.MinMaxScaler, bool) {
	modelPath := filepath.Join(s.dir, "lstm_"+slug+".json")
	scalerPath := filepath.Join(s.dir, "scaler_"+slug+".json")

	modelData, modelErr := os.ReadFile(modelPath)
	scalerData, scalerErr := os.ReadFile(scalerPath)

	if os.IsNotExist(modelErr) && os.IsNotExist(scalerErr) {
		s.logger.Warn("no trained artifact for role", "role", role, "slug", slug)
		return nil, nil, false
	}
	if modelErr != nil || scalerErr != nil {
		// one file present without the other is a partial write, treat as corrupt
		s.logger.Error("incomplete or unreadable artifact pair",
			"role", role,
			"model_error", modelErr,
			"scaler_error", scalerErr,
		)
		return nil, nil, false
	}

	model := &models.LSTM{}
	if err := json.Unmarshal(modelData, model); err != nil {
		s.logger.Error("failed to deserialize model artifact", "role", role, "error", err)
		return nil, nil, false
	}
	if !model.Trained() {
		s.logger.Error("model artifact was persisted before training", "role", role)
		return nil, nil, false
	}

	scaler := &models.MinMaxScaler{}
	if err := json.Unmarshal(scalerData, scaler); err != nil {
		s.logger.Error("failed to deserialize scaler artifact", "role", role, "error", err)
		return nil, nil, false
	}
	if !scaler.Fitted {
		s.logger.Error("scaler artifact was persisted before fitting", "role", role)
		return nil, nil, false
	}

	s.logger.Info("loaded artifact pair", "role", role, "slug", slug)
	return model, scaler, true
}

// Save persists a trained artifact pair, model file first and scaler second,
// so an interrupted write leaves a detectable partial pair rather than a
// scaler paired with stale weights.
func (s *Store) Save(role string, model *models.LSTM, scaler *models.MinMaxScaler) error {
	if model == nil || scaler == nil {
		return fmt.Errorf("artifacts: model and scaler are both required for %q", role)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("artifacts: create directory %s: %w", s.dir, err)
	}

	modelData, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("artifacts: serialize model for %q: %w", role, err)
	}
	scalerData, err := json.Marshal(scaler)
	if err != nil {
		return fmt.Errorf("artifacts: serialize scaler for %q: %w", role, err)
	}

	if err := os.WriteFile(s.ModelPath(role), modelData, 0o644); err != nil {
		return fmt.Errorf("artifacts: write model for %q: %w", role, err)
	}
	if err := os.WriteFile(s.ScalerPath(role), scalerData, 0o644); err != nil {
		return fmt.Errorf("artifacts: write scaler for %q: %w", role, err)
	}

	s.logger.Info("saved artifact pair", "role", role, "slug", Slug(role))
	return nil
}
