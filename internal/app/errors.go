package service

import "errors"

// Sentinel errors for per-item import outcomes.
var (
	errDuplicateScore = errors.New("score already imported")
)
