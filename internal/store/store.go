// Package store persists the four roster collections of each group.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DoyleJ11/rodizio-backend/internal/engine"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Collection string

const (
	Registered Collection = "registered"
	TeamA      Collection = "team_a"
	TeamB      Collection = "team_b"
	Queue      Collection = "queue"
)

// Collections lists every collection a group persists.
var Collections = []Collection{Registered, TeamA, TeamB, Queue}

var ErrUnknownCollection = errors.New("unknown collection")

func (c Collection) valid() bool {
	switch c {
	case Registered, TeamA, TeamB, Queue:
		return true
	}
	return false
}

// Roster records that a group code exists, even while all of its
// collections are empty.
type Roster struct {
	Code      string `gorm:"primaryKey;size:16"`
	CreatedAt time.Time
}

func (Roster) TableName() string { return "rosters" }

// Entry is one participant record at one position of a collection. Name and
// Category sizes are engine.MaxNameLength and engine.MaxCategoryLength.
type Entry struct {
	ID            uint       `gorm:"primaryKey"`
	Code          string     `gorm:"size:16;not null;index:idx_entries_code_collection"`
	Collection    Collection `gorm:"size:16;not null;index:idx_entries_code_collection"`
	Position      int        `gorm:"not null"`
	ParticipantID string     `gorm:"size:64;not null"`
	Name          string     `gorm:"size:100;not null"`
	Category      string     `gorm:"size:32;not null"`
	Goals         int        `gorm:"not null;default:0"`
}

func (Entry) TableName() string { return "roster_entries" }

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates the rosters and roster_entries tables.
func (s *GormStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&Roster{}, &Entry{}); err != nil {
		return fmt.Errorf("migrate roster tables: %w", err)
	}
	return nil
}

// Create records code as a known group. Creating an existing code is a no-op.
func (s *GormStore) Create(ctx context.Context, code string) error {
	if err := createRoster(s.db.WithContext(ctx), code); err != nil {
		return fmt.Errorf("create roster %s: %w", code, err)
	}
	return nil
}

// Exists reports whether code was created or has ever been saved.
func (s *GormStore) Exists(ctx context.Context, code string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&Roster{}).Where("code = ?", code).Count(&n).Error; err != nil {
		return false, fmt.Errorf("look up roster %s: %w", code, err)
	}
	return n > 0, nil
}

func createRoster(db *gorm.DB, code string) error {
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&Roster{Code: code}).Error
}

func (s *GormStore) Load(ctx context.Context, code string, coll Collection) ([]engine.Participant, error) {
	if !coll.valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, coll)
	}

	var rows []Entry
	err := s.db.WithContext(ctx).
		Where("code = ? AND collection = ?", code, coll).
		Order("position").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load %s/%s: %w", code, coll, err)
	}

	out := make([]engine.Participant, 0, len(rows))
	for _, row := range rows {
		out = append(out, engine.Participant{
			ID:       row.ParticipantID,
			Name:     row.Name,
			Category: row.Category,
			Goals:    row.Goals,
		})
	}
	return out, nil
}

// Save replaces the whole collection in one transaction.
func (s *GormStore) Save(ctx context.Context, code string, coll Collection, ps []engine.Participant) error {
	if !coll.valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, coll)
	}

	rows := make([]Entry, 0, len(ps))
	for i, p := range ps {
		rows = append(rows, Entry{
			Code:          code,
			Collection:    coll,
			Position:      i,
			ParticipantID: p.ID,
			Name:          p.Name,
			Category:      p.Category,
			Goals:         p.Goals,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := createRoster(tx, code); err != nil {
			return err
		}
		if err := tx.Where("code = ? AND collection = ?", code, coll).Delete(&Entry{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("save %s/%s: %w", code, coll, err)
	}
	return nil
}
