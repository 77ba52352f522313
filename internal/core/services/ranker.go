package services

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ragbase/ragbase/internal/core/domain"
	"github.com/ragbase/ragbase/internal/logger"
)

// freshnessHalfLife is the document age at which a freshness-ranked
// score is halved.
const freshnessHalfLife = 30 * 24 * time.Hour

// RankItem is one hydrated candidate the ranker reorders. The ranker
// never adds or removes items; re-ranking only changes order and the
// effective score.
type RankItem struct {
	// ChunkID is the candidate chunk.
	ChunkID string

	// Score is the retrieval score, replaced by the method's adjusted
	// score after ranking.
	Score float64

	// Text is the chunk text, used by diversity ranking.
	Text string

	// Authority is the document-level trust weight, 1.0 when unset.
	Authority float64

	// UpdatedAt is the parent document's last-modified time, used by
	// freshness ranking.
	UpdatedAt time.Time
}

// Ranker reorders retrieval candidates. All methods are deterministic:
// equal scores are broken by chunk ID ascending, so the same corpus and
// query always produce the same order.
type Ranker struct {
	now func() time.Time
}

// NewRanker creates a new ranker.
func NewRanker() *Ranker {
	return &Ranker{now: time.Now}
}

// Rank reorders items with the given method. diversityThreshold is the
// pairwise text-similarity above which a candidate counts as a
// near-duplicate of an already-chosen one (diversity method only).
func (r *Ranker) Rank(method domain.RankingMethod, items []RankItem, diversityThreshold float64) []RankItem {
	ranked := make([]RankItem, len(items))
	copy(ranked, items)

	switch method {
	case domain.RankRelevance:
		sortByScore(ranked)
	case domain.RankDiversity:
		sortByScore(ranked)
		ranked = diversify(ranked, diversityThreshold)
	case domain.RankAuthority:
		for i := range ranked {
			ranked[i].Score *= authorityWeight(ranked[i].Authority)
		}
		sortByScore(ranked)
	case domain.RankFreshness:
		now := r.now()
		for i := range ranked {
			ranked[i].Score *= freshnessWeight(now, ranked[i].UpdatedAt)
		}
		sortByScore(ranked)
	default:
		logger.Warn("Unknown ranking method %q, falling back to relevance", method)
		sortByScore(ranked)
	}
	return ranked
}

// sortByScore sorts descending by score, ties broken by chunk ID.
func sortByScore(items []RankItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ChunkID < items[j].ChunkID
	})
}

// diversify applies a greedy maximal-marginal-relevance pass over a
// score-sorted list. Items too similar to an already-selected item are
// demoted behind all distinct items, preserving their relative order.
// Nothing is dropped.
func diversify(items []RankItem, threshold float64) []RankItem {
	if len(items) < 2 {
		return items
	}

	selected := make([]RankItem, 0, len(items))
	demoted := make([]RankItem, 0)
	profiles := make([]map[string]float64, 0, len(items))

	for _, item := range items {
		profile := trigramProfile(item.Text)
		duplicate := false
		for _, chosen := range profiles {
			if trigramCosine(profile, chosen) >= threshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			demoted = append(demoted, item)
			continue
		}
		selected = append(selected, item)
		profiles = append(profiles, profile)
	}

	return append(selected, demoted...)
}

// trigramProfile builds a character-trigram frequency vector for
// near-duplicate detection. Case and whitespace runs are folded.
func trigramProfile(text string) map[string]float64 {
	folded := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	runes := []rune(folded)
	profile := make(map[string]float64)
	if len(runes) < 3 {
		if len(runes) > 0 {
			profile[string(runes)] = 1
		}
		return profile
	}
	for i := 0; i+3 <= len(runes); i++ {
		profile[string(runes[i:i+3])]++
	}
	return profile
}

// trigramCosine is the cosine similarity of two trigram profiles.
func trigramCosine(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for gram, fa := range a {
		normA += fa * fa
		if fb, ok := b[gram]; ok {
			dot += fa * fb
		}
	}
	for _, fb := range b {
		normB += fb * fb
	}
	if dot == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// authorityWeight clamps a document trust weight into a usable boost.
// Unset (zero) authority is neutral.
func authorityWeight(authority float64) float64 {
	if authority <= 0 {
		return 1.0
	}
	return authority
}

// freshnessWeight decays exponentially with document age; a document
// one half-life old scores half as much.
func freshnessWeight(now, updatedAt time.Time) float64 {
	if updatedAt.IsZero() || !updatedAt.Before(now) {
		return 1.0
	}
	age := now.Sub(updatedAt)
	return math.Pow(0.5, float64(age)/float64(freshnessHalfLife))
}

// ParseAuthority reads a document's authority metadata value.
// Returns 1.0 for missing or malformed values.
func ParseAuthority(metadata map[string]string) float64 {
	raw, ok := metadata["authority"]
	if !ok {
		return 1.0
	}
	authority, err := strconv.ParseFloat(raw, 64)
	if err != nil || authority <= 0 {
		return 1.0
	}
	return authority
}
