package helpers

import "sort"

// EntryStatistic is one name with how often it occurred.
type EntryStatistic struct {
	Name  string
	Count int
}

// TopEntries returns the top N most frequent names
// If limit is 0 or negative, returns all names
func TopEntries(frequency map[string]int, limit int) []EntryStatistic {
	stats := make([]EntryStatistic, 0, len(frequency))
	for name, count := range frequency {
		stats = append(stats, EntryStatistic{Name: name, Count: count})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count == stats[j].Count {
			return stats[i].Name < stats[j].Name
		}
		return stats[i].Count > stats[j].Count
	})

	if limit > 0 && len(stats) > limit {
		return stats[:limit]
	}
	return stats
}

// Percentage returns part/total as a percentage, 0 when total is 0
func Percentage(part int, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}
