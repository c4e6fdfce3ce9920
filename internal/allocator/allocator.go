// Package allocator splits a total source budget across weighted libraries.
package allocator

import (
	"math"

	"github.com/devashis/prajna/internal/model"
)

// Allocate computes an integer per-library quota from the total desired
// source count. When at least one library carries an explicit weight, each
// library receives round(total * weight / totalWeight); unweighted libraries
// default to weight 1. When no library specifies a weight, the budget is
// split evenly with floor(total / count).
//
// Each quota is rounded independently, so the sum may drift from total by one
// for some weight combinations. Callers tolerate the drift; forcing exact
// conservation would change observable allocations.
func Allocate(total int, libraries []model.Library) []model.Allocation {
	if len(libraries) == 0 {
		return []model.Allocation{}
	}
	if total < 0 {
		total = 0
	}

	weighted := false
	totalWeight := 0.0
	for _, lib := range libraries {
		w := 1.0
		if lib.Weight != nil {
			weighted = true
			w = *lib.Weight
		}
		totalWeight += w
	}

	out := make([]model.Allocation, 0, len(libraries))
	if !weighted || totalWeight == 0 {
		share := total / len(libraries)
		for _, lib := range libraries {
			out = append(out, model.Allocation{Name: lib.Name, Sources: share})
		}
		return out
	}

	for _, lib := range libraries {
		w := 1.0
		if lib.Weight != nil {
			w = *lib.Weight
		}
		sources := int(math.Round(float64(total) * w / totalWeight))
		// Negative weights are tolerated input, never negative output.
		if sources < 0 {
			sources = 0
		}
		out = append(out, model.Allocation{Name: lib.Name, Sources: sources})
	}
	return out
}
