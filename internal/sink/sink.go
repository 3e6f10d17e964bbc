// Package sink persists scrape results.
package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/21prnv/InfluenceIq/internal/engine"
	"github.com/21prnv/InfluenceIq/pkg/models"
)

// Path is where the result for account is written inside dir.
func Path(dir, account string) string {
	return filepath.Join(dir, account+"_data.json")
}

// Encode renders result as the persisted JSON document.
func Encode(result *models.ScrapeResult) ([]byte, error) {
	if err := result.Validate(); err != nil {
		return nil, err
	}
	content, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(content, '\n'), nil
}

// Write replaces the file at path with result. The write is atomic: a
// reader sees either the previous document or the new one. Failures are
// PersistenceFailure errors and are not retried.
func Write(result *models.ScrapeResult, path string) error {
	content, err := Encode(result)
	if err != nil {
		return engine.NewError(engine.KindPersistenceFailure, "refusing to persist result", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return engine.NewError(engine.KindPersistenceFailure, "failed to create output directory", err).
			WithDetail("path", path)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return engine.NewError(engine.KindPersistenceFailure, "failed to create temp file", err).
			WithDetail("path", path)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return engine.NewError(engine.KindPersistenceFailure, "failed to write result", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return engine.NewError(engine.KindPersistenceFailure, "failed to set result mode", err)
	}
	if err := tmp.Close(); err != nil {
		return engine.NewError(engine.KindPersistenceFailure, "failed to flush result", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return engine.NewError(engine.KindPersistenceFailure, "failed to move result into place", err).
			WithDetail("path", path)
	}

	log.Debug().Str("path", path).Bool("failed", result.Failed()).Msg("Result written")
	return nil
}

// Read loads a result written by Write.
func Read(path string) (*models.ScrapeResult, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var result models.ScrapeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode result %s: %w", path, err)
	}
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("invalid result %s: %w", path, err)
	}
	return &result, nil
}
