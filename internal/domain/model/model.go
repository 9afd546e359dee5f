// Package model contains domain documents passed between layers.
//
// All timestamps are unix milliseconds. Absent timestamps are nil pointers;
// zero is a valid instant.
package model

// Game identifies a supported rhythm-game title.
type Game string

// Supported games.
const (
	GameIIDX   Game = "iidx"
	GameSDVX   Game = "sdvx"
	GameDDR    Game = "ddr"
	GameBMS    Game = "bms"
	GameUSC    Game = "usc"
	GameMuseca Game = "museca"
)

// Playtype is a title-specific play-mode variant.
type Playtype string

// Known playtypes.
const (
	PlaytypeSP     Playtype = "SP"
	PlaytypeDP     Playtype = "DP"
	PlaytypeSingle Playtype = "Single"
)

// ImportType identifies the source format of an import batch.
type ImportType string

// Supported import types.
const (
	ImportTypeBatchManual  ImportType = "file/json:batch-manual"
	ImportTypeDirectManual ImportType = "ir/direct-manual"
	ImportTypeAPIKaiSDVX   ImportType = "api/kai:sdvx"
)

// Song is a catalog entity. Immutable after catalog seeding.
type Song struct {
	ID           int      `json:"id"`
	Game         Game     `json:"game"`
	Title        string   `json:"title"`
	AltTitles    []string `json:"altTitles,omitempty"`
	FirstVersion string   `json:"firstVersion,omitempty"`
}

// Chart is a specific playable variant of a song.
type Chart struct {
	ChartID    string   `json:"chartID"`
	SongID     int      `json:"songID"`
	Game       Game     `json:"game"`
	Playtype   Playtype `json:"playtype"`
	Difficulty string   `json:"difficulty"`
	Level      string   `json:"level"`
	LevelNum   float64  `json:"levelNum"`
	InGameID   int      `json:"inGameID,omitempty"`
	Hash       string   `json:"hash,omitempty"`
	// Versions is the ordered list of version tags during which the chart
	// was playable.
	Versions []string `json:"versions,omitempty"`
	// IsPrimary marks the single primary chart per (song, playtype,
	// difficulty).
	IsPrimary bool `json:"isPrimary"`
	// Notecount drives score-to-percent conversion for EX-score titles.
	Notecount int `json:"notecount,omitempty"`
}

// DryScoreData is the converter's view of a play before hydration.
type DryScoreData struct {
	Score   float64            `json:"score"`
	Percent float64            `json:"percent"`
	Grade   string             `json:"grade"`
	Lamp    string             `json:"lamp"`
	HitData map[string]int     `json:"hitData,omitempty"`
	HitMeta map[string]float64 `json:"hitMeta,omitempty"`
}

// DryScore is the transient converter output. It is never persisted;
// hydration turns it into a Score.
type DryScore struct {
	Game         Game         `json:"game"`
	Service      string       `json:"service"`
	Comment      string       `json:"comment,omitempty"`
	ImportType   ImportType   `json:"importType"`
	TimeAchieved *int64       `json:"timeAchieved,omitempty"`
	ScoreData    DryScoreData `json:"scoreData"`
}

// ScoreData is the hydrated per-play data, adding the grade/lamp indices
// derived from the title's ordered enumerations.
type ScoreData struct {
	Score      float64            `json:"score"`
	Percent    float64            `json:"percent"`
	Grade      string             `json:"grade"`
	GradeIndex int                `json:"gradeIndex"`
	Lamp       string             `json:"lamp"`
	LampIndex  int                `json:"lampIndex"`
	HitData    map[string]int     `json:"hitData,omitempty"`
	HitMeta    map[string]float64 `json:"hitMeta,omitempty"`
}

// Score is the canonical persisted record of one real play. Created once;
// never mutated except for the PB flags and calculatedData recomputation.
type Score struct {
	ScoreID        string             `json:"scoreID"`
	UserID         int                `json:"userID"`
	SongID         int                `json:"songID"`
	ChartID        string             `json:"chartID"`
	Game           Game               `json:"game"`
	Playtype       Playtype           `json:"playtype"`
	Difficulty     string             `json:"difficulty"`
	Service        string             `json:"service"`
	ImportType     ImportType         `json:"importType"`
	Comment        string             `json:"comment,omitempty"`
	TimeAchieved   *int64             `json:"timeAchieved,omitempty"`
	TimeAdded      int64              `json:"timeAdded"`
	ScoreData      ScoreData          `json:"scoreData"`
	CalculatedData map[string]float64 `json:"calculatedData,omitempty"`
	// PB flags are set false on hydration; promotion happens in separate
	// deduplication logic outside this pipeline.
	IsScorePB bool `json:"isScorePB"`
	IsLampPB  bool `json:"isLampPB"`
}

// PB is the personal-best view of a chart for one user. Rating rollups read
// only IsPrimary PBs, never raw scores.
type PB struct {
	UserID         int                `json:"userID"`
	ChartID        string             `json:"chartID"`
	Game           Game               `json:"game"`
	Playtype       Playtype           `json:"playtype"`
	IsPrimary      bool               `json:"isPrimary"`
	ScoreData      ScoreData          `json:"scoreData"`
	CalculatedData map[string]float64 `json:"calculatedData,omitempty"`
}

// SessionScoreInfo is the lightweight member reference a session keeps for
// each score, including the delta against the then-current primary best.
type SessionScoreInfo struct {
	ScoreID      string  `json:"scoreID"`
	IsNewScore   bool    `json:"isNewScore"`
	GradeDelta   int     `json:"gradeDelta,omitempty"`
	LampDelta    int     `json:"lampDelta,omitempty"`
	PercentDelta float64 `json:"percentDelta,omitempty"`
	ScoreDelta   float64 `json:"scoreDelta,omitempty"`
}

// Session clusters a user's plays on one game/playtype within temporal
// proximity. Invariant: TimeStarted <= every member timestamp <= TimeEnded.
type Session struct {
	SessionID      string             `json:"sessionID"`
	UserID         int                `json:"userID"`
	Game           Game               `json:"game"`
	Playtype       Playtype           `json:"playtype"`
	ImportType     ImportType         `json:"importType"`
	Name           string             `json:"name"`
	Desc           string             `json:"desc,omitempty"`
	Highlight      bool               `json:"highlight"`
	ScoreInfo      []SessionScoreInfo `json:"scoreInfo"`
	TimeInserted   int64              `json:"timeInserted"`
	TimeStarted    int64              `json:"timeStarted"`
	TimeEnded      int64              `json:"timeEnded"`
	CalculatedData map[string]float64 `json:"calculatedData,omitempty"`
}

// SessionOutcomeType records what clustering did with a score group.
type SessionOutcomeType string

// Session outcomes.
const (
	SessionCreated  SessionOutcomeType = "Created"
	SessionAppended SessionOutcomeType = "Appended"
)

// SessionOutcome is emitted per score group after clustering.
type SessionOutcome struct {
	SessionID string             `json:"sessionID"`
	Type      SessionOutcomeType `json:"type"`
}

// FailureKind categorizes a per-item import failure for reporting.
type FailureKind string

// Failure kinds surfaced to the submitter.
const (
	FailureInvalidScore FailureKind = "InvalidScore"
	FailureDataNotFound FailureKind = "DataNotFound"
	FailureInternal     FailureKind = "Internal"
	FailureDuplicate    FailureKind = "Duplicate"
)

// ItemFailure reports one rejected item of an import batch.
type ItemFailure struct {
	Index   int         `json:"index"`
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// ImportJob is one user's import batch as it flows through the queue.
type ImportJob struct {
	JobID      string
	UserID     int
	Game       Game
	ImportType ImportType
	// Payload is the raw request body for file/ir imports, handed to the
	// format's parser.
	Payload []byte
}
