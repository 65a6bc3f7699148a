package scheduler

import (
	"github.com/esm-tools/cmorize/pkg/rules"
)

// GroupByYears partitions matched files into chronological groups spanning
// at most yearsPerGroup calendar years each. Matches are sorted by their
// extracted date first; files without a date stay in the current group.
// yearsPerGroup below one puts everything in a single group.
func GroupByYears(matches []rules.MatchResult, yearsPerGroup int) [][]string {
	if len(matches) == 0 {
		return nil
	}

	sorted := make([]rules.MatchResult, len(matches))
	copy(sorted, matches)
	rules.SortByDate(sorted)

	if yearsPerGroup < 1 {
		group := make([]string, len(sorted))
		for i, m := range sorted {
			group[i] = m.Path
		}
		return [][]string{group}
	}

	var groups [][]string
	var current []string
	startYear := 0
	for _, m := range sorted {
		year, ok := m.Year()
		if ok && current != nil && year >= startYear+yearsPerGroup {
			groups = append(groups, current)
			current = nil
		}
		if current == nil && ok {
			startYear = year
		}
		current = append(current, m.Path)
	}
	if current != nil {
		groups = append(groups, current)
	}
	return groups
}
