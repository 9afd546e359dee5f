package session

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
)

var nameAdjectives = []string{
	"Blazing", "Quiet", "Restless", "Golden", "Midnight",
	"Electric", "Patient", "Ruthless", "Wandering", "Steady",
	"Fearless", "Lucky", "Stormy", "Gentle", "Relentless",
}

var nameNouns = []string{
	"Arcade", "Marathon", "Grind", "Comeback", "Warmup",
	"Rampage", "Voyage", "Encore", "Gauntlet", "Ritual",
	"Expedition", "Sprint", "Odyssey", "Detour", "Finale",
}

// newSessionID mints a fresh session identifier.
func newSessionID() string {
	return "Q" + uuid.NewString()
}

// newSessionName picks a random two-word display name. Names are cosmetic
// and renameable by the user; collisions are fine.
func newSessionName() string {
	return fmt.Sprintf("%s %s", nameAdjectives[rand.Intn(len(nameAdjectives))], nameNouns[rand.Intn(len(nameNouns))])
}
