package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/wricardo/cheese-pants/game/engine"
)

// GameRecord is the row holding one room's serialized state
type GameRecord struct {
	GameID    string         `gorm:"primaryKey;size:255"`
	Phase     string         `gorm:"size:16;index"`
	State     datatypes.JSON `gorm:"not null"`
	StartedAt time.Time      `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName keeps the table name stable across struct renames
func (GameRecord) TableName() string { return "games" }

// SQLPersistence implements Persistence on a gorm database
type SQLPersistence struct {
	db *gorm.DB
}

// OpenSQL connects to driver ("sqlite" or "postgres") and migrates the
// games table.
func OpenSQL(driver, dsn string) (*SQLPersistence, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	return NewSQLPersistence(db)
}

// NewSQLPersistence wraps an open database and migrates the games table
func NewSQLPersistence(db *gorm.DB) (*SQLPersistence, error) {
	if err := db.AutoMigrate(&GameRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate games table: %w", err)
	}
	return &SQLPersistence{db: db}, nil
}

// Save upserts the game row
func (sp *SQLPersistence) Save(ctx context.Context, state *engine.GameState) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal game state: %w", err)
	}

	rec := GameRecord{
		GameID:    state.GameID,
		Phase:     string(state.Phase),
		State:     datatypes.JSON(data),
		StartedAt: state.StartedAt,
	}
	err = sp.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "game_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"phase", "state", "started_at", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to save game %s: %w", state.GameID, err)
	}
	return nil
}

// Load reads and repairs a stored game
func (sp *SQLPersistence) Load(ctx context.Context, gameID string) (*engine.GameState, error) {
	var rec GameRecord
	err := sp.db.WithContext(ctx).Where("game_id = ?", gameID).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load game %s: %w", gameID, err)
	}

	return loadRecord(gameID, func(s *engine.GameState) error {
		if err := json.Unmarshal(rec.State, s); err != nil {
			return fmt.Errorf("failed to unmarshal game %s: %w", gameID, err)
		}
		return nil
	})
}

// Delete removes a game row
func (sp *SQLPersistence) Delete(ctx context.Context, gameID string) error {
	res := sp.db.WithContext(ctx).Where("game_id = ?", gameID).Delete(&GameRecord{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete game %s: %w", gameID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrGameNotFound
	}
	return nil
}

// ListAll returns every stored game ID, most recently started first
func (sp *SQLPersistence) ListAll(ctx context.Context) ([]string, error) {
	ids := []string{}
	err := sp.db.WithContext(ctx).Model(&GameRecord{}).
		Order("started_at DESC").
		Pluck("game_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	return ids, nil
}

// Exists reports whether a row is stored for gameID
func (sp *SQLPersistence) Exists(ctx context.Context, gameID string) (bool, error) {
	var count int64
	err := sp.db.WithContext(ctx).Model(&GameRecord{}).Where("game_id = ?", gameID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check game %s: %w", gameID, err)
	}
	return count > 0, nil
}

// Close releases the underlying connection pool
func (sp *SQLPersistence) Close() error {
	sqlDB, err := sp.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
