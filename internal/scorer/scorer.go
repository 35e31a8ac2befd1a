// Package scorer computes composite need scores and unsupervised cluster and
// rank assignments from standardized indicators.
package scorer

import (
	"sort"

	"go.uber.org/zap"

	"github.com/reliefscope/needscan/internal/apperr"
	"github.com/reliefscope/needscan/internal/config"
	"github.com/reliefscope/needscan/internal/dataset"
)

// ScoredRecord is one geographic unit with its composite score, cluster
// assignment, and ranks. Never mutated after classification attaches Level.
type ScoredRecord struct {
	Name        string    `json:"geo_unit"`
	Values      []float64 `json:"indicator_values"`
	Score       float64   `json:"need_score"`
	ScoreNorm   float64   `json:"need_score_norm"`
	Cluster     int       `json:"cluster"`
	ClusterRank int       `json:"cluster_rank"`
	NeedRank    int       `json:"need_rank"`
	Level       string    `json:"need_level,omitempty"`
}

// Scorer assigns scores, clusters, and ranks using fixed policy constants.
type Scorer struct {
	cfg config.ScorerConfig
}

// New creates a Scorer with the given policy configuration.
func New(cfg config.ScorerConfig) *Scorer {
	if cfg.SmallBreakpoint <= 0 {
		cfg.SmallBreakpoint = 15
	}
	if cfg.MediumBreakpoint <= 0 {
		cfg.MediumBreakpoint = 40
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 100
	}
	return &Scorer{cfg: cfg}
}

// ClusterCount returns the cluster count for a sample size. The breakpoints
// are fixed policy, not a data-driven search; below 3 rows clustering
// degrades to a single cluster.
func (s *Scorer) ClusterCount(n int) int {
	switch {
	case n < 3:
		return 1
	case n < s.cfg.SmallBreakpoint:
		return 3
	case n < s.cfg.MediumBreakpoint:
		return 4
	default:
		return 5
	}
}

// Score computes composite scores, clusters the standardized features, and
// assigns cluster ranks and per-unit need ranks.
//
// The composite score is the row-wise mean of standardized indicators, which
// assumes every indicator is oriented so that higher means more need; see
// dataset.Preprocess for the orientation override.
func (s *Scorer) Score(pre *dataset.Preprocessed) ([]ScoredRecord, error) {
	n := len(pre.Records)
	if n < 1 {
		return nil, apperr.New(apperr.KindData, "no rows to score after preprocessing")
	}
	if len(pre.Schema.Indicators) < 1 {
		return nil, apperr.New(apperr.KindData, "no indicator columns to score after preprocessing")
	}

	records := make([]ScoredRecord, n)
	for i := range pre.Records {
		records[i] = ScoredRecord{
			Name:   pre.Records[i].Name,
			Values: pre.Records[i].Values,
			Score:  rowMean(pre.Features[i]),
		}
	}
	normalizeScores(records)

	k := s.ClusterCount(n)
	labels := kmeans(pre.Features, k, s.cfg.Seed, s.cfg.MaxIterations)
	for i := range records {
		records[i].Cluster = labels[i]
	}

	assignClusterRanks(records)
	assignNeedRanks(records)

	zap.L().Info("scorer: scoring complete",
		zap.Int("units", n),
		zap.Int("clusters", k),
	)

	return records, nil
}

func rowMean(row []float64) float64 {
	if len(row) == 0 {
		return 0
	}
	var sum float64
	for _, v := range row {
		sum += v
	}
	return sum / float64(len(row))
}

// normalizeScores fills ScoreNorm with a 0-1 min-max rescaling of Score for
// display and threshold comparison. A constant score distribution maps to 0.
func normalizeScores(records []ScoredRecord) {
	lo, hi := records[0].Score, records[0].Score
	for _, r := range records[1:] {
		if r.Score < lo {
			lo = r.Score
		}
		if r.Score > hi {
			hi = r.Score
		}
	}
	if hi <= lo {
		return // all zero
	}
	for i := range records {
		records[i].ScoreNorm = (records[i].Score - lo) / (hi - lo)
	}
}

// assignClusterRanks orders clusters by descending mean composite score;
// rank 0 goes to the cluster with the highest mean. Mean ties break on the
// lower cluster id.
func assignClusterRanks(records []ScoredRecord) {
	sums := map[int]float64{}
	counts := map[int]int{}
	for _, r := range records {
		sums[r.Cluster] += r.Score
		counts[r.Cluster]++
	}

	ids := make([]int, 0, len(sums))
	for id := range sums {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool {
		ma := sums[ids[a]] / float64(counts[ids[a]])
		mb := sums[ids[b]] / float64(counts[ids[b]])
		if ma != mb {
			return ma > mb
		}
		return ids[a] < ids[b]
	})

	rankOf := make(map[int]int, len(ids))
	for rank, id := range ids {
		rankOf[id] = rank
	}
	for i := range records {
		records[i].ClusterRank = rankOf[records[i].Cluster]
	}
}

// assignNeedRanks gives every unit a global rank by composite score
// descending, rank 0 being the highest individual score. Independent of
// cluster rank: cluster rank groups, need rank orders.
func assignNeedRanks(records []ScoredRecord) {
	order := make([]int, len(records))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return records[order[a]].Score > records[order[b]].Score
	})
	for rank, idx := range order {
		records[idx].NeedRank = rank
	}
}
