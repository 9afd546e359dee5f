package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/hibiki-gg/scoretrack/internal/domain/model"
	"github.com/hibiki-gg/scoretrack/pkg/metrics"
)

// Key prefixes for BadgerDB storage. Documents are JSON-encoded; secondary
// lookups go through index keys that point at the primary key.
const (
	songKeyPrefix      = "song:"      // song:<game>:<songID>
	chartKeyPrefix     = "chart:"     // chart:<game>:<chartID>
	scoreKeyPrefix     = "score:"     // score:<scoreID>
	userScoreKeyPrefix = "uscore:"    // uscore:<userID>:<chartID>:<scoreID> -> scoreID
	pbKeyPrefix        = "pb:"        // pb:<userID>:<game>:<playtype>:<chartID>
	sessionKeyPrefix   = "sess:"      // sess:<sessionID>
	sessionIdxPrefix   = "sessidx:"   // sessidx:<userID>:<game>:<playtype>:<sessionID> -> sessionID
)

// BadgerStore implements Store on BadgerDB for durable storage across
// restarts. Catalog and session lookups are prefix scans with in-memory
// filtering; the collections are small enough per key range that this stays
// cheap.
type BadgerStore struct {
	db *badger.DB
}

var _ Store = (*BadgerStore)(nil)

// NewBadgerStore opens a BadgerDB-backed store at dir. An empty dir opens an
// in-memory database (used by tests).
func NewBadgerStore(ctx context.Context, dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func songKey(game model.Game, songID int) []byte {
	return []byte(songKeyPrefix + string(game) + ":" + strconv.Itoa(songID))
}

func chartKey(game model.Game, chartID string) []byte {
	return []byte(chartKeyPrefix + string(game) + ":" + chartID)
}

func badgerPBKey(userID int, game model.Game, pt model.Playtype, chartID string) []byte {
	return []byte(pbKeyPrefix + strconv.Itoa(userID) + ":" + string(game) + ":" + string(pt) + ":" + chartID)
}

func sessionIdxKey(userID int, game model.Game, pt model.Playtype, sessionID string) []byte {
	return []byte(sessionIdxPrefix + strconv.Itoa(userID) + ":" + string(game) + ":" + string(pt) + ":" + sessionID)
}

// getJSON loads and decodes one document inside a read transaction.
func getJSON(txn *badger.Txn, key []byte, out interface{}) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

// setJSON encodes and stores one document inside a write transaction.
func setJSON(txn *badger.Txn, key []byte, doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := txn.Set(key, data); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// scanPrefix walks all documents under prefix, decoding each into a fresh T
// via fn.
func scanPrefix(txn *badger.Txn, prefix string, fn func(val []byte) error) error {
	it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(prefix), PrefetchValues: true, PrefetchSize: 64})
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

func (b *BadgerStore) observeQuery(start time.Time) {
	metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
}

func (b *BadgerStore) observeUpdate(start time.Time) {
	metrics.RecordStoreUpdateLatency(float64(time.Since(start).Milliseconds()))
}

// FindSongByID looks a song up by its stable catalog ID.
func (b *BadgerStore) FindSongByID(ctx context.Context, game model.Game, songID int) (*model.Song, error) {
	defer b.observeQuery(time.Now())

	var song model.Song
	err := b.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, songKey(game, songID), &song)
	})
	if err != nil {
		return nil, err
	}
	return &song, nil
}

// FindSongByTitle matches title or alternate titles case-insensitively.
func (b *BadgerStore) FindSongByTitle(ctx context.Context, game model.Game, title string) (*model.Song, error) {
	defer b.observeQuery(time.Now())

	want := strings.ToLower(title)
	var found *model.Song
	err := b.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, songKeyPrefix+string(game)+":", func(val []byte) error {
			if found != nil {
				return nil
			}
			var song model.Song
			if err := json.Unmarshal(val, &song); err != nil {
				return err
			}
			if strings.ToLower(song.Title) == want {
				found = &song
				return nil
			}
			for _, alt := range song.AltTitles {
				if strings.ToLower(alt) == want {
					found = &song
					return nil
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// findChart scans the game's charts and returns the first match.
func (b *BadgerStore) findChart(game model.Game, match func(*model.Chart) bool) (*model.Chart, error) {
	var found *model.Chart
	err := b.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, chartKeyPrefix+string(game)+":", func(val []byte) error {
			if found != nil {
				return nil
			}
			var chart model.Chart
			if err := json.Unmarshal(val, &chart); err != nil {
				return err
			}
			if match(&chart) {
				found = &chart
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// FindChartByHash resolves a chart by its content hash.
func (b *BadgerStore) FindChartByHash(ctx context.Context, game model.Game, hash string) (*model.Chart, error) {
	defer b.observeQuery(time.Now())
	return b.findChart(game, func(c *model.Chart) bool {
		return c.Hash != "" && c.Hash == hash
	})
}

// FindChartBySongPTDF returns the primary chart for (song, playtype, difficulty).
func (b *BadgerStore) FindChartBySongPTDF(ctx context.Context, game model.Game, songID int, pt model.Playtype, difficulty string) (*model.Chart, error) {
	defer b.observeQuery(time.Now())
	return b.findChart(game, func(c *model.Chart) bool {
		return c.SongID == songID && c.Playtype == pt && c.Difficulty == difficulty && c.IsPrimary
	})
}

// FindChartBySongPTDFVersion scopes the PTDF lookup to a catalog version.
func (b *BadgerStore) FindChartBySongPTDFVersion(ctx context.Context, game model.Game, songID int, pt model.Playtype, difficulty string, version string) (*model.Chart, error) {
	defer b.observeQuery(time.Now())
	return b.findChart(game, func(c *model.Chart) bool {
		if c.SongID != songID || c.Playtype != pt || c.Difficulty != difficulty {
			return false
		}
		for _, v := range c.Versions {
			if v == version {
				return true
			}
		}
		return false
	})
}

// FindChartByInGameID resolves a chart by in-game identifier and version.
func (b *BadgerStore) FindChartByInGameID(ctx context.Context, game model.Game, inGameID int, difficulty string, version string) (*model.Chart, error) {
	defer b.observeQuery(time.Now())
	return b.findChart(game, func(c *model.Chart) bool {
		if c.InGameID != inGameID || c.Difficulty != difficulty {
			return false
		}
		for _, v := range c.Versions {
			if v == version {
				return true
			}
		}
		return false
	})
}

// UpsertSong inserts or replaces a catalog song.
func (b *BadgerStore) UpsertSong(ctx context.Context, song *model.Song) error {
	defer b.observeUpdate(time.Now())
	return b.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, songKey(song.Game, song.ID), song)
	})
}

// UpsertChart inserts or replaces a catalog chart.
func (b *BadgerStore) UpsertChart(ctx context.Context, chart *model.Chart) error {
	defer b.observeUpdate(time.Now())
	return b.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, chartKey(chart.Game, chart.ChartID), chart)
	})
}

// InsertScore persists a hydrated score. Duplicate score IDs are rejected.
func (b *BadgerStore) InsertScore(ctx context.Context, score *model.Score) error {
	defer b.observeUpdate(time.Now())
	return b.db.Update(func(txn *badger.Txn) error {
		key := []byte(scoreKeyPrefix + score.ScoreID)
		if _, err := txn.Get(key); err == nil {
			return ErrDuplicate
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check score: %w", err)
		}

		if err := setJSON(txn, key, score); err != nil {
			return err
		}

		// Index for per-user chart lookups.
		idx := []byte(userScoreKeyPrefix + strconv.Itoa(score.UserID) + ":" + score.ChartID + ":" + score.ScoreID)
		if err := txn.Set(idx, []byte(score.ScoreID)); err != nil {
			return fmt.Errorf("set score index: %w", err)
		}
		return nil
	})
}

// UpdateScore replaces the stored score by its ID.
func (b *BadgerStore) UpdateScore(ctx context.Context, score *model.Score) error {
	defer b.observeUpdate(time.Now())
	return b.db.Update(func(txn *badger.Txn) error {
		key := []byte(scoreKeyPrefix + score.ScoreID)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("check score: %w", err)
		}
		return setJSON(txn, key, score)
	})
}

// GetScoresByIDs returns the scores for the given IDs, skipping unknown IDs.
func (b *BadgerStore) GetScoresByIDs(ctx context.Context, scoreIDs []string) ([]model.Score, error) {
	defer b.observeQuery(time.Now())

	out := make([]model.Score, 0, len(scoreIDs))
	err := b.db.View(func(txn *badger.Txn) error {
		for _, id := range scoreIDs {
			var score model.Score
			err := getJSON(txn, []byte(scoreKeyPrefix+id), &score)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, score)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindScorePBs returns the user's score-PB per chart, keyed by chart ID.
func (b *BadgerStore) FindScorePBs(ctx context.Context, userID int, chartIDs []string) (map[string]model.Score, error) {
	defer b.observeQuery(time.Now())

	out := make(map[string]model.Score)
	err := b.db.View(func(txn *badger.Txn) error {
		for _, chartID := range chartIDs {
			prefix := userScoreKeyPrefix + strconv.Itoa(userID) + ":" + chartID + ":"
			var ids []string
			if err := scanPrefix(txn, prefix, func(val []byte) error {
				ids = append(ids, string(val))
				return nil
			}); err != nil {
				return err
			}
			for _, id := range ids {
				var score model.Score
				if err := getJSON(txn, []byte(scoreKeyPrefix+id), &score); err != nil {
					if errors.Is(err, ErrNotFound) {
						continue
					}
					return err
				}
				if score.IsScorePB {
					out[chartID] = score
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertPB inserts or replaces a personal-best record.
func (b *BadgerStore) UpsertPB(ctx context.Context, pb *model.PB) error {
	defer b.observeUpdate(time.Now())
	return b.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, badgerPBKey(pb.UserID, pb.Game, pb.Playtype, pb.ChartID), pb)
	})
}

// FindBestPBs returns primary PBs matching q, sorted by the metric descending.
func (b *BadgerStore) FindBestPBs(ctx context.Context, q PBQuery) ([]model.PB, error) {
	defer b.observeQuery(time.Now())

	prefix := pbKeyPrefix + strconv.Itoa(q.UserID) + ":" + string(q.Game) + ":" + string(q.Playtype) + ":"
	var out []model.PB
	err := b.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, prefix, func(val []byte) error {
			var pb model.PB
			if err := json.Unmarshal(val, &pb); err != nil {
				return err
			}
			if pb.IsPrimary && pb.CalculatedData[q.Metric] > 0 {
				out = append(out, pb)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		a := out[i].CalculatedData[q.Metric]
		bv := out[j].CalculatedData[q.Metric]
		if a != bv {
			return a > bv
		}
		return out[i].ChartID < out[j].ChartID
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// FindNearbySession returns the earliest-starting session whose window lies
// within +-margin of [start, end].
func (b *BadgerStore) FindNearbySession(ctx context.Context, userID int, game model.Game, pt model.Playtype, start, end, margin int64) (*model.Session, error) {
	defer b.observeQuery(time.Now())

	prefix := sessionIdxPrefix + strconv.Itoa(userID) + ":" + string(game) + ":" + string(pt) + ":"
	var best *model.Session
	err := b.db.View(func(txn *badger.Txn) error {
		var ids []string
		if err := scanPrefix(txn, prefix, func(val []byte) error {
			ids = append(ids, string(val))
			return nil
		}); err != nil {
			return err
		}
		for _, id := range ids {
			var sess model.Session
			if err := getJSON(txn, []byte(sessionKeyPrefix+id), &sess); err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				return err
			}
			if !nearbyMatch(&sess, start, end, margin) {
				continue
			}
			if best == nil || sess.TimeStarted < best.TimeStarted {
				cp := sess
				best = &cp
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}

// InsertSession persists a new session plus its user/game/playtype index key.
func (b *BadgerStore) InsertSession(ctx context.Context, session *model.Session) error {
	defer b.observeUpdate(time.Now())
	return b.db.Update(func(txn *badger.Txn) error {
		key := []byte(sessionKeyPrefix + session.SessionID)
		if _, err := txn.Get(key); err == nil {
			return ErrDuplicate
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check session: %w", err)
		}

		if err := setJSON(txn, key, session); err != nil {
			return err
		}
		idx := sessionIdxKey(session.UserID, session.Game, session.Playtype, session.SessionID)
		if err := txn.Set(idx, []byte(session.SessionID)); err != nil {
			return fmt.Errorf("set session index: %w", err)
		}
		return nil
	})
}

// GetSession returns a session by ID.
func (b *BadgerStore) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	defer b.observeQuery(time.Now())

	var sess model.Session
	err := b.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, []byte(sessionKeyPrefix+sessionID), &sess)
	})
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// UpdateSession replaces the stored session by its ID.
func (b *BadgerStore) UpdateSession(ctx context.Context, session *model.Session) error {
	defer b.observeUpdate(time.Now())
	return b.db.Update(func(txn *badger.Txn) error {
		key := []byte(sessionKeyPrefix + session.SessionID)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("check session: %w", err)
		}
		return setJSON(txn, key, session)
	})
}

// Close closes the underlying BadgerDB.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}
