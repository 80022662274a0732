// Package rerank merges the ranked lists of a multi-field hybrid search into
// one list.
//
// Two strategies are available. RRF (reciprocal rank fusion) scores each
// candidate by the sum of 1/(k + rank) over the lists it appears in.
// Weighted min-max normalises every list and sums the normalised scores
// scaled by one weight per list.
//
//	hits, err := rerank.Rerank(lists, rerank.Weighted{Weights: []float64{0.9, 0.1}}, 10)
//
// Equal fused scores are ordered by ascending id. A single list is returned
// as is, truncated to the limit, so a hybrid search over one field matches a
// plain search.
package rerank
