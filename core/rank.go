package core

import (
	"sort"

	"github.com/quantumclean/heatshield/schema"
)

// RankResults sorts results by effective score in descending order and
// returns the top 'limit' results. Ties break on ZIP ascending so equal
// scores still rank deterministically. A non-positive limit, or one past
// the number of results, returns all results in sorted order.
func RankResults(results []schema.AttentionResult, limit int) []schema.AttentionResult {
	sort.Slice(results, func(i, j int) bool {
		si, sj := results[i].EffectiveScore(), results[j].EffectiveScore()
		if si != sj {
			return si > sj
		}
		return results[i].ZIP < results[j].ZIP
	})
	if limit > 0 && len(results) > limit {
		return results[:limit]
	}
	return results
}
