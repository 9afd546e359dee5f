package repository

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hibiki-gg/scoretrack/internal/domain/model"
	"github.com/hibiki-gg/scoretrack/pkg/metrics"
)

// MemStore is the in-memory Store implementation used by tests and as the
// default backend when no data directory is configured.
type MemStore struct {
	mu sync.RWMutex

	songs    map[model.Game]map[int]*model.Song
	charts   map[model.Game]map[string]*model.Chart
	scores   map[string]*model.Score
	pbs      map[string]*model.PB // key: userID:game:playtype:chartID
	sessions map[string]*model.Session

	closed bool
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore(ctx context.Context) *MemStore {
	return &MemStore{
		songs:    make(map[model.Game]map[int]*model.Song),
		charts:   make(map[model.Game]map[string]*model.Chart),
		scores:   make(map[string]*model.Score),
		pbs:      make(map[string]*model.PB),
		sessions: make(map[string]*model.Session),
	}
}

func pbKey(userID int, game model.Game, pt model.Playtype, chartID string) string {
	return strings.Join([]string{strconv.Itoa(userID), string(game), string(pt), chartID}, ":")
}

func (m *MemStore) observeQuery(start time.Time) {
	metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
}

func (m *MemStore) observeUpdate(start time.Time) {
	metrics.RecordStoreUpdateLatency(float64(time.Since(start).Milliseconds()))
}

// FindSongByID looks a song up by its stable catalog ID.
func (m *MemStore) FindSongByID(ctx context.Context, game model.Game, songID int) (*model.Song, error) {
	defer m.observeQuery(time.Now())
	m.mu.RLock()
	defer m.mu.RUnlock()

	if byID, ok := m.songs[game]; ok {
		if song, ok := byID[songID]; ok {
			cp := *song
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// FindSongByTitle matches title or alternate titles case-insensitively.
func (m *MemStore) FindSongByTitle(ctx context.Context, game model.Game, title string) (*model.Song, error) {
	defer m.observeQuery(time.Now())
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := strings.ToLower(title)
	for _, song := range m.songs[game] {
		if strings.ToLower(song.Title) == want {
			cp := *song
			return &cp, nil
		}
		for _, alt := range song.AltTitles {
			if strings.ToLower(alt) == want {
				cp := *song
				return &cp, nil
			}
		}
	}
	return nil, ErrNotFound
}

// FindChartByHash resolves a chart by its content hash.
func (m *MemStore) FindChartByHash(ctx context.Context, game model.Game, hash string) (*model.Chart, error) {
	defer m.observeQuery(time.Now())
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, chart := range m.charts[game] {
		if chart.Hash != "" && chart.Hash == hash {
			cp := *chart
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// FindChartBySongPTDF returns the primary chart for (song, playtype, difficulty).
func (m *MemStore) FindChartBySongPTDF(ctx context.Context, game model.Game, songID int, pt model.Playtype, difficulty string) (*model.Chart, error) {
	defer m.observeQuery(time.Now())
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, chart := range m.charts[game] {
		if chart.SongID == songID && chart.Playtype == pt && chart.Difficulty == difficulty && chart.IsPrimary {
			cp := *chart
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// FindChartBySongPTDFVersion scopes the PTDF lookup to a catalog version.
func (m *MemStore) FindChartBySongPTDFVersion(ctx context.Context, game model.Game, songID int, pt model.Playtype, difficulty string, version string) (*model.Chart, error) {
	defer m.observeQuery(time.Now())
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, chart := range m.charts[game] {
		if chart.SongID != songID || chart.Playtype != pt || chart.Difficulty != difficulty {
			continue
		}
		for _, v := range chart.Versions {
			if v == version {
				cp := *chart
				return &cp, nil
			}
		}
	}
	return nil, ErrNotFound
}

// FindChartByInGameID resolves a chart by in-game identifier and version.
func (m *MemStore) FindChartByInGameID(ctx context.Context, game model.Game, inGameID int, difficulty string, version string) (*model.Chart, error) {
	defer m.observeQuery(time.Now())
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, chart := range m.charts[game] {
		if chart.InGameID != inGameID || chart.Difficulty != difficulty {
			continue
		}
		for _, v := range chart.Versions {
			if v == version {
				cp := *chart
				return &cp, nil
			}
		}
	}
	return nil, ErrNotFound
}

// UpsertSong inserts or replaces a catalog song.
func (m *MemStore) UpsertSong(ctx context.Context, song *model.Song) error {
	defer m.observeUpdate(time.Now())
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.songs[song.Game] == nil {
		m.songs[song.Game] = make(map[int]*model.Song)
	}
	cp := *song
	m.songs[song.Game][song.ID] = &cp
	return nil
}

// UpsertChart inserts or replaces a catalog chart.
func (m *MemStore) UpsertChart(ctx context.Context, chart *model.Chart) error {
	defer m.observeUpdate(time.Now())
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.charts[chart.Game] == nil {
		m.charts[chart.Game] = make(map[string]*model.Chart)
	}
	cp := *chart
	m.charts[chart.Game][chart.ChartID] = &cp
	return nil
}

// InsertScore persists a hydrated score. Duplicate score IDs are rejected.
func (m *MemStore) InsertScore(ctx context.Context, score *model.Score) error {
	defer m.observeUpdate(time.Now())
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if _, exists := m.scores[score.ScoreID]; exists {
		return ErrDuplicate
	}
	cp := *score
	m.scores[score.ScoreID] = &cp
	return nil
}

// UpdateScore replaces the stored score by its ID.
func (m *MemStore) UpdateScore(ctx context.Context, score *model.Score) error {
	defer m.observeUpdate(time.Now())
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if _, exists := m.scores[score.ScoreID]; !exists {
		return ErrNotFound
	}
	cp := *score
	m.scores[score.ScoreID] = &cp
	return nil
}

// GetScoresByIDs returns the scores for the given IDs, skipping unknown IDs.
func (m *MemStore) GetScoresByIDs(ctx context.Context, scoreIDs []string) ([]model.Score, error) {
	defer m.observeQuery(time.Now())
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Score, 0, len(scoreIDs))
	for _, id := range scoreIDs {
		if sc, ok := m.scores[id]; ok {
			out = append(out, *sc)
		}
	}
	return out, nil
}

// FindScorePBs returns the user's score-PB per chart, keyed by chart ID.
func (m *MemStore) FindScorePBs(ctx context.Context, userID int, chartIDs []string) (map[string]model.Score, error) {
	defer m.observeQuery(time.Now())
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := make(map[string]bool, len(chartIDs))
	for _, id := range chartIDs {
		want[id] = true
	}

	out := make(map[string]model.Score)
	for _, sc := range m.scores {
		if sc.UserID == userID && sc.IsScorePB && want[sc.ChartID] {
			out[sc.ChartID] = *sc
		}
	}
	return out, nil
}

// UpsertPB inserts or replaces a personal-best record.
func (m *MemStore) UpsertPB(ctx context.Context, pb *model.PB) error {
	defer m.observeUpdate(time.Now())
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	cp := *pb
	m.pbs[pbKey(pb.UserID, pb.Game, pb.Playtype, pb.ChartID)] = &cp
	return nil
}

// FindBestPBs returns primary PBs matching q, sorted by the metric descending.
func (m *MemStore) FindBestPBs(ctx context.Context, q PBQuery) ([]model.PB, error) {
	defer m.observeQuery(time.Now())
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.PB
	for _, pb := range m.pbs {
		if pb.UserID != q.UserID || pb.Game != q.Game || pb.Playtype != q.Playtype {
			continue
		}
		if !pb.IsPrimary {
			continue
		}
		if pb.CalculatedData[q.Metric] <= 0 {
			continue
		}
		out = append(out, *pb)
	}

	sort.Slice(out, func(i, j int) bool {
		a := out[i].CalculatedData[q.Metric]
		b := out[j].CalculatedData[q.Metric]
		if a != b {
			return a > b
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
func (m *MemStore) FindNearbySession(ctx context.Context, userID int, game model.Game, pt model.Playtype, start, end, margin int64) (*model.Session, error) {
	defer m.observeQuery(time.Now())
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *model.Session
	for _, sess := range m.sessions {
		if sess.UserID != userID || sess.Game != game || sess.Playtype != pt {
			continue
		}
		if !nearbyMatch(sess, start, end, margin) {
			continue
		}
		if best == nil || sess.TimeStarted < best.TimeStarted {
			best = sess
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	cp := *best
	cp.ScoreInfo = append([]model.SessionScoreInfo(nil), best.ScoreInfo...)
	return &cp, nil
}

// InsertSession persists a new session.
func (m *MemStore) InsertSession(ctx context.Context, session *model.Session) error {
	defer m.observeUpdate(time.Now())
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if _, exists := m.sessions[session.SessionID]; exists {
		return ErrDuplicate
	}
	cp := *session
	cp.ScoreInfo = append([]model.SessionScoreInfo(nil), session.ScoreInfo...)
	m.sessions[session.SessionID] = &cp
	return nil
}

// GetSession returns a session by ID.
func (m *MemStore) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	defer m.observeQuery(time.Now())
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sess
	cp.ScoreInfo = append([]model.SessionScoreInfo(nil), sess.ScoreInfo...)
	return &cp, nil
}

// UpdateSession replaces the stored session by its ID.
func (m *MemStore) UpdateSession(ctx context.Context, session *model.Session) error {
	defer m.observeUpdate(time.Now())
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if _, exists := m.sessions[session.SessionID]; !exists {
		return ErrNotFound
	}
	cp := *session
	cp.ScoreInfo = append([]model.SessionScoreInfo(nil), session.ScoreInfo...)
	m.sessions[session.SessionID] = &cp
	return nil
}

// Close marks the store closed. Reads keep working so in-flight batches can
// drain.
func (m *MemStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
