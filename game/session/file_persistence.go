package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/cheese-pants/game/engine"
)

// FilePersistence implements Persistence with one JSON file per game
type FilePersistence struct {
	gamesDir string
}

// NewFilePersistence creates a file-based store rooted at gamesDir
func NewFilePersistence(gamesDir string) (*FilePersistence, error) {
	if err := os.MkdirAll(gamesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create games directory: %w", err)
	}
	return &FilePersistence{gamesDir: gamesDir}, nil
}

// Save writes the state to a temporary file and renames it into place so a
// reader never sees a partial record.
func (fp *FilePersistence) Save(ctx context.Context, state *engine.GameState) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	jsonData, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal game state: %w", err)
	}

	tmp, err := os.CreateTemp(fp.gamesDir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(jsonData); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write game file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync game file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close game file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fp.getFilePath(state.GameID)); err != nil {
		return fmt.Errorf("failed to move game file into place: %w", err)
	}
	return nil
}

// Load reads and repairs a stored game
func (fp *FilePersistence) Load(ctx context.Context, gameID string) (*engine.GameState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	jsonData, err := os.ReadFile(fp.getFilePath(gameID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read game file: %w", err)
	}

	return loadRecord(gameID, func(s *engine.GameState) error {
		if err := json.Unmarshal(jsonData, s); err != nil {
			return fmt.Errorf("failed to unmarshal game %s: %w", gameID, err)
		}
		return nil
	})
}

// Delete removes a game file
func (fp *FilePersistence) Delete(ctx context.Context, gameID string) error {
	err := os.Remove(fp.getFilePath(gameID))
	if errors.Is(err, os.ErrNotExist) {
		return ErrGameNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to remove game file: %w", err)
	}
	return nil
}

// ListAll returns all stored game IDs
func (fp *FilePersistence) ListAll(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(fp.gamesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read games directory: %w", err)
	}

	gameIDs := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".tmp-") || !strings.HasSuffix(name, ".json") {
			continue
		}
		id, err := url.PathUnescape(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		gameIDs = append(gameIDs, id)
	}
	return gameIDs, nil
}

// Exists checks if a game file exists
func (fp *FilePersistence) Exists(ctx context.Context, gameID string) (bool, error) {
	_, err := os.Stat(fp.getFilePath(gameID))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// getFilePath escapes the client-supplied ID so it can never leave gamesDir
func (fp *FilePersistence) getFilePath(gameID string) string {
	return filepath.Join(fp.gamesDir, url.PathEscape(gameID)+".json")
}
