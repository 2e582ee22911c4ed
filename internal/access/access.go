// Package access maps requester access levels to the document tiers they may see.
package access

import "github.com/hyperjump/zantara/internal/models"

const (
	// MinLevel is the most restricted requester (public visitor).
	MinLevel = 0
	// MaxLevel is the least restricted requester (internal team).
	MaxLevel = 3
)

// ClampLevel forces level into [MinLevel, MaxLevel]. Callers are trusted internal code,
// so out-of-range values are clamped rather than rejected.
func ClampLevel(level int) int {
	if level < MinLevel {
		return MinLevel
	}
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}

// AllowedTiers returns the cumulative tier set visible at level: level N sees the first N+1
// tiers of S, A, B, C. The returned slice is a fresh copy.
func AllowedTiers(level int) []models.Tier {
	n := ClampLevel(level) + 1
	out := make([]models.Tier, n)
	copy(out, models.AllTiers[:n])
	return out
}

// Allows reports whether a requester at level may see a chunk of the given tier.
func Allows(level int, tier models.Tier) bool {
	rank := tier.Rank()
	return rank >= 0 && rank <= ClampLevel(level)
}

// Visible reports whether md passes both the tier ceiling and the chunk's own min_level.
func Visible(level int, md models.ChunkMetadata) bool {
	level = ClampLevel(level)
	return Allows(level, md.Tier) && md.MinLevel <= level
}
