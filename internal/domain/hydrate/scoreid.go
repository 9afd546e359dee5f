package hydrate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// ScoreID derives the deterministic identifier of one logical play from the
// fields that define it. Two submissions of the same play always hash to the
// same ID, which is what the dedupe layer and the store's duplicate check
// key on. The achieved timestamp is part of the identity: the same result
// played twice is two plays.
func ScoreID(userID int, chartID string, score, percent float64, lamp, grade string, timeAchieved *int64) string {
	ts := "null"
	if timeAchieved != nil {
		ts = strconv.FormatInt(*timeAchieved, 10)
	}

	payload := strings.Join([]string{
		strconv.Itoa(userID),
		chartID,
		fmt.Sprintf("%g", score),
		fmt.Sprintf("%g", percent),
		lamp,
		grade,
		ts,
	}, "|")

	sum := sha256.Sum256([]byte(payload))
	return "R" + hex.EncodeToString(sum[:])
}
