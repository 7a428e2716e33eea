// Package archive persists finished games to Postgres. It sits behind the hub
// as an optional leaf; an empty DSN leaves the server fully functional with
// the in-memory recent-games feed only.
package archive

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/greed-games/greedroulette/internal/lobby"
	"github.com/greed-games/greedroulette/internal/logging"
)

type GameRecord struct {
	ID         uint   `gorm:"primaryKey"`
	Code       string `gorm:"index;size:6"`
	Name       string `gorm:"size:30"`
	Mode       string `gorm:"size:20"`
	Rounds     int
	Players    int
	WinnerID   string `gorm:"size:64"`
	WinnerName string `gorm:"size:20"`
	EndedAt    time.Time
	CreatedAt  time.Time

	RoundHistory []RoundRecord `gorm:"foreignKey:GameID"`
}

type RoundRecord struct {
	ID        uint `gorm:"primaryKey"`
	GameID    uint `gorm:"index"`
	Number    int
	StartedAt time.Time
	EndedAt   time.Time

	// Per-player outcomes, wheel snapshot and losers, kept as the engine
	// serializes them rather than exploded into columns.
	Details json.RawMessage `gorm:"type:jsonb"`
}

type Store struct {
	db *gorm.DB
}

func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).AutoMigrate(&GameRecord{}, &RoundRecord{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) SaveGame(ctx context.Context, sum lobby.Summary) error {
	rec := GameRecord{
		Code:       sum.Code,
		Name:       sum.Name,
		Mode:       string(sum.Mode),
		Rounds:     sum.Rounds,
		Players:    sum.Players,
		WinnerID:   sum.WinnerID,
		WinnerName: sum.WinnerName,
		EndedAt:    sum.EndedAt,
	}
	for _, round := range sum.History {
		details, err := json.Marshal(round)
		if err != nil {
			logging.FromContext(ctx).Errorw("round marshal failed", "code", sum.Code, "round", round.Number, "err", err)
			continue
		}
		rec.RoundHistory = append(rec.RoundHistory, RoundRecord{
			Number:    round.Number,
			StartedAt: round.StartedAt,
			EndedAt:   round.EndedAt,
			Details:   details,
		})
	}
	return s.db.WithContext(ctx).Create(&rec).Error
}

// RecentGames returns the latest finished games, newest first.
func (s *Store) RecentGames(ctx context.Context, limit int) ([]GameRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var games []GameRecord
	err := s.db.WithContext(ctx).
		Order("ended_at desc").
		Limit(limit).
		Find(&games).Error
	return games, err
}
