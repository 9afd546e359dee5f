// Package repository defines the document-store interface and errors.
//
// The store is consumed as a key/value + filtered-query service: filtered
// find with sort and limit, insert, and read-modify-write updates. The
// catalog collections (songs, charts) are read-only to the pipeline and
// seeded at startup.
package repository

import (
	"context"

	"github.com/hibiki-gg/scoretrack/internal/domain/model"
)

// PBQuery filters personal-best records for rating rollups. Only IsPrimary
// records with CalculatedData[Metric] > 0 match; results are sorted by the
// metric descending. Limit <= 0 means no limit.
type PBQuery struct {
	UserID   int
	Game     model.Game
	Playtype model.Playtype
	Metric   string
	Limit    int
}

// Store provides read/write access to the score, session, personal-best and
// catalog collections.
type Store interface {
	// Catalog lookups. All return ErrNotFound when nothing matches.
	FindSongByID(ctx context.Context, game model.Game, songID int) (*model.Song, error)
	// FindSongByTitle matches title or alternate titles case-insensitively.
	FindSongByTitle(ctx context.Context, game model.Game, title string) (*model.Song, error)
	FindChartByHash(ctx context.Context, game model.Game, hash string) (*model.Chart, error)
	// FindChartBySongPTDF returns the primary chart for the tuple.
	FindChartBySongPTDF(ctx context.Context, game model.Game, songID int, pt model.Playtype, difficulty string) (*model.Chart, error)
	// FindChartBySongPTDFVersion scopes the lookup to a catalog version.
	FindChartBySongPTDFVersion(ctx context.Context, game model.Game, songID int, pt model.Playtype, difficulty string, version string) (*model.Chart, error)
	FindChartByInGameID(ctx context.Context, game model.Game, inGameID int, difficulty string, version string) (*model.Chart, error)

	// Catalog seeding, used at startup only.
	UpsertSong(ctx context.Context, song *model.Song) error
	UpsertChart(ctx context.Context, chart *model.Chart) error

	// Scores. InsertScore returns ErrDuplicate if the score ID exists.
	InsertScore(ctx context.Context, score *model.Score) error
	// UpdateScore replaces the stored score by its ID. Used only for PB-flag
	// promotion; score content is otherwise immutable.
	UpdateScore(ctx context.Context, score *model.Score) error
	GetScoresByIDs(ctx context.Context, scoreIDs []string) ([]model.Score, error)
	// FindScorePBs returns the user's score-PB per chart for the given
	// chart IDs, keyed by chart ID. Charts without a PB are absent.
	FindScorePBs(ctx context.Context, userID int, chartIDs []string) (map[string]model.Score, error)

	// Personal bests.
	UpsertPB(ctx context.Context, pb *model.PB) error
	FindBestPBs(ctx context.Context, q PBQuery) ([]model.PB, error)

	// Sessions. FindNearbySession returns the session on user/game/playtype
	// whose [TimeStarted, TimeEnded] window lies within +-margin of
	// [start, end]; when several match it returns the one with the earliest
	// TimeStarted. ErrNotFound when none match.
	FindNearbySession(ctx context.Context, userID int, game model.Game, pt model.Playtype, start, end, margin int64) (*model.Session, error)
	InsertSession(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, sessionID string) (*model.Session, error)
	// UpdateSession replaces the stored session by its ID.
	UpdateSession(ctx context.Context, session *model.Session) error

	Close() error
}

// nearbyMatch reports whether a session window overlaps [start-margin,
// end+margin) on either bound, mirroring the nearby-session query.
func nearbyMatch(s *model.Session, start, end, margin int64) bool {
	lo := start - margin
	hi := end + margin
	if s.TimeStarted >= lo && s.TimeStarted < hi {
		return true
	}
	if s.TimeEnded >= lo && s.TimeEnded < hi {
		return true
	}
	return false
}
