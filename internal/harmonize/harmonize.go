package harmonize

import (
	"go.uber.org/zap"

	"github.com/reliefscope/needscan/internal/apperr"
	"github.com/reliefscope/needscan/internal/config"
)

// Match strategies, in the order they are attempted.
const (
	StrategyExact     = "exact"
	StrategyFuzzy     = "fuzzy"
	StrategyUnmatched = "unmatched"
)

// MatchResult records how one dataset geographic unit was (or was not)
// paired with a boundary feature.
type MatchResult struct {
	RecordName   string  `json:"record_name"`
	Normalized   string  `json:"normalized"`
	BoundaryName string  `json:"boundary_name,omitempty"`
	FeatureIndex int     `json:"feature_index"` // -1 when unmatched
	Confidence   float64 `json:"confidence"`
	Strategy     string  `json:"strategy"`
}

// Result is the full harmonization outcome for one dataset/boundary pair.
type Result struct {
	Matches   []MatchResult `json:"matches"`
	MatchRate float64       `json:"match_rate"`
}

// Matcher pairs dataset unit names with boundary feature names.
type Matcher struct {
	threshold  float64
	warnBelow  float64
	similarity Similarity
}

// NewMatcher builds a Matcher from harmonization configuration.
func NewMatcher(cfg config.HarmonizeConfig) *Matcher {
	threshold := cfg.SimilarityThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = 0.84
	}
	warnBelow := cfg.MatchRateWarn
	if warnBelow <= 0 || warnBelow > 1 {
		warnBelow = 0.70
	}
	return &Matcher{
		threshold:  threshold,
		warnBelow:  warnBelow,
		similarity: SimilarityByName(cfg.Algorithm),
	}
}

// Match pairs every record name with its best boundary feature. Exact
// matches on normalized names win outright; otherwise the highest-scoring
// feature at or above the threshold is taken, with earlier features winning
// ties so reruns are stable. Unmatched records stay in the result with
// FeatureIndex -1; they are reported, never dropped.
func (m *Matcher) Match(recordNames, boundaryNames []string) (*Result, error) {
	if len(recordNames) == 0 {
		return nil, apperr.New(apperr.KindData, "no record names to harmonize")
	}
	if len(boundaryNames) == 0 {
		return nil, apperr.New(apperr.KindData, "no boundary names to harmonize against")
	}

	normalized := make([]string, len(boundaryNames))
	exactIndex := make(map[string]int, len(boundaryNames))
	for i, name := range boundaryNames {
		normalized[i] = Normalize(name)
		if _, seen := exactIndex[normalized[i]]; !seen && normalized[i] != "" {
			exactIndex[normalized[i]] = i
		}
	}

	result := &Result{Matches: make([]MatchResult, 0, len(recordNames))}
	matched := 0

	for _, record := range recordNames {
		normRecord := Normalize(record)
		match := MatchResult{
			RecordName:   record,
			Normalized:   normRecord,
			FeatureIndex: -1,
			Strategy:     StrategyUnmatched,
		}

		if i, ok := exactIndex[normRecord]; ok {
			match.BoundaryName = boundaryNames[i]
			match.FeatureIndex = i
			match.Confidence = 1
			match.Strategy = StrategyExact
		} else {
			bestIdx, bestScore := -1, 0.0
			for i, candidate := range normalized {
				if candidate == "" {
					continue
				}
				if score := m.similarity(normRecord, candidate); score > bestScore {
					bestIdx, bestScore = i, score
				}
			}
			if bestIdx >= 0 && bestScore >= m.threshold {
				match.BoundaryName = boundaryNames[bestIdx]
				match.FeatureIndex = bestIdx
				match.Confidence = bestScore
				match.Strategy = StrategyFuzzy
			}
		}

		if match.FeatureIndex >= 0 {
			matched++
		} else {
			zap.L().Warn("harmonize: unmatched geographic unit",
				zap.String("record", record),
				zap.String("normalized", normRecord),
			)
		}
		result.Matches = append(result.Matches, match)
	}

	result.MatchRate = float64(matched) / float64(len(recordNames))
	if result.MatchRate < m.warnBelow {
		zap.L().Warn("harmonize: low match rate",
			zap.Float64("match_rate", result.MatchRate),
			zap.Float64("warn_below", m.warnBelow),
			zap.Int("matched", matched),
			zap.Int("total", len(recordNames)),
		)
	}
	return result, nil
}
