package rerank

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// DefaultRRFK is the rank-fusion smoothing constant used when RRF.K is zero.
const DefaultRRFK = 60

// Hit is one ranked candidate. ID is an int64 or a string primary key.
type Hit struct {
	ID     any
	Score  float32
	Fields map[string]any
}

// RankedList is the result of one per-field search, best hit first.
type RankedList struct {
	Hits []Hit
	// LowerIsBetter marks distance metrics (L2, HAMMING, JACCARD). Weighted
	// normalisation inverts such lists so that 1 is always the best hit.
	LowerIsBetter bool
}

// Strategy fuses several ranked lists into one score per candidate.
type Strategy interface {
	// Name returns the strategy name as used in request parameters.
	Name() string
	validate(lists int) error
	fuse(lists []RankedList) map[any]float64
}

// RRF is reciprocal rank fusion: each list contributes 1/(K + rank) for
// every candidate it contains, rank starting at 1.
type RRF struct {
	K float64
}

func (RRF) Name() string { return "rrf" }

func (r RRF) k() float64 {
	if r.K <= 0 {
		return DefaultRRFK
	}
	return r.K
}

func (r RRF) validate(int) error {
	if math.IsNaN(r.K) || math.IsInf(r.K, 0) {
		return fmt.Errorf("%w: rrf k must be finite", ErrInvalidParams)
	}
	return nil
}

func (r RRF) fuse(lists []RankedList) map[any]float64 {
	k := r.k()
	out := make(map[any]float64)
	for _, list := range lists {
		seen := make(map[any]struct{}, len(list.Hits))
		for rank, hit := range list.Hits {
			if _, dup := seen[hit.ID]; dup {
				continue
			}
			seen[hit.ID] = struct{}{}
			out[hit.ID] += 1 / (k + float64(rank+1))
		}
	}
	return out
}

// Weighted sums the min-max normalised scores of every list, scaled by one
// weight per list.
type Weighted struct {
	Weights []float64
}

func (Weighted) Name() string { return "weighted" }

func (w Weighted) validate(lists int) error {
	if len(w.Weights) != lists {
		return fmt.Errorf("%w: %d weights for %d fields", ErrInvalidWeights, len(w.Weights), lists)
	}
	sum := 0.0
	for i, x := range w.Weights {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%w: weight %d is not finite", ErrInvalidWeights, i)
		}
		if x < 0 {
			return fmt.Errorf("%w: weight %d is negative", ErrInvalidWeights, i)
		}
		sum += x
	}
	if sum <= 0 {
		return fmt.Errorf("%w: weights sum to %v", ErrInvalidWeights, sum)
	}
	return nil
}

func (w Weighted) fuse(lists []RankedList) map[any]float64 {
	out := make(map[any]float64)
	for i, list := range lists {
		if len(list.Hits) == 0 {
			continue
		}
		lo, hi := list.Hits[0].Score, list.Hits[0].Score
		for _, hit := range list.Hits {
			lo = min(lo, hit.Score)
			hi = max(hi, hit.Score)
		}
		seen := make(map[any]struct{}, len(list.Hits))
		for _, hit := range list.Hits {
			if _, dup := seen[hit.ID]; dup {
				continue
			}
			seen[hit.ID] = struct{}{}
			out[hit.ID] += w.Weights[i] * normalize(hit.Score, lo, hi, list.LowerIsBetter)
		}
	}
	return out
}

// normalize maps a score into [0,1] within its list. A list whose scores are
// all equal normalises every hit to 1.
func normalize(score, lo, hi float32, lowerIsBetter bool) float64 {
	span := float64(hi) - float64(lo)
	if span == 0 {
		return 1
	}
	if lowerIsBetter {
		return (float64(hi) - float64(score)) / span
	}
	return (float64(score) - float64(lo)) / span
}

// Rerank merges per-field ranked lists into one list of at most limit hits.
// limit <= 0 keeps every distinct candidate.
//
// With a single list the strategy is validated and the list is returned
// truncated, hits and scores untouched. Otherwise every distinct candidate
// gets the fused score, ordered descending with ties broken by ascending id.
// Fields come from the candidate's first occurrence in list order.
func Rerank(lists []RankedList, strategy Strategy, limit int) ([]Hit, error) {
	if strategy == nil {
		return nil, fmt.Errorf("%w: nil strategy", ErrUnknownStrategy)
	}
	if err := strategy.validate(len(lists)); err != nil {
		return nil, err
	}
	if len(lists) == 0 {
		return []Hit{}, nil
	}
	if len(lists) == 1 {
		return truncate(lists[0].Hits, limit), nil
	}

	scores := strategy.fuse(lists)
	first := make(map[any]Hit, len(scores))
	order := make([]any, 0, len(scores))
	for _, list := range lists {
		for _, hit := range list.Hits {
			if _, ok := first[hit.ID]; ok {
				continue
			}
			first[hit.ID] = hit
			order = append(order, hit.ID)
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		si, sj := scores[order[i]], scores[order[j]]
		if si != sj {
			return si > sj
		}
		return CompareIDs(order[i], order[j]) < 0
	})

	if limit > 0 && len(order) > limit {
		order = order[:limit]
	}
	out := make([]Hit, len(order))
	for i, id := range order {
		out[i] = Hit{ID: id, Score: float32(scores[id]), Fields: first[id].Fields}
	}
	return out, nil
}

func truncate(hits []Hit, limit int) []Hit {
	n := len(hits)
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]Hit, n)
	copy(out, hits[:n])
	return out
}

// CompareIDs orders primary keys: integers numerically, strings
// lexicographically, integers before strings.
func CompareIDs(a, b any) int {
	ai, aInt := asInt64(a)
	bi, bInt := asInt64(b)
	switch {
	case aInt && bInt:
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	case aInt:
		return -1
	case bInt:
		return 1
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint32:
		return int64(n), true
	}
	return 0, false
}
