package utils

import (
	"fmt"
	"strings"
	"time"
)

// ToFloat64 function take any argument and tries to return a float64 if fail, 0
func ToFloat64(value any) float64 {
	switch v := value.(type) {
	case int:

		return float64(v)
	case int8:

		return float64(v)
	case int16:

		return float64(v)
	case int32:

		return float64(v)
	case int64:

		return float64(v)
	case uint:

		return float64(v)
	case uint8:

		return float64(v)
	case uint16:

		return float64(v)
	case uint32:

		return float64(v)
	case uint64:

		return float64(v)
	case float32:

		return float64(v)
	case float64:

		return v
	default:

		return 0
	}
}

// ToSnakeCase will format a given string to snake case
func ToSnakeCase(input string) string {
	output := make([]rune, 0, len(input))
	for i, r := range input {
		if i > 0 && r >= 'A' && r <= 'Z' {
			output = append(output, '_')
		}
		output = append(output, r)
	}

	return strings.ToLower(string(output))
}

// HasDuplicatesInt64 reports whether the id list selects anything twice.
func HasDuplicatesInt64(ids []int64) bool {
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}

	return false
}

// Ago renders a timestamp as a rough relative age for the dashboard.
func Ago(t any) string {
	var parsed time.Time
	switch v := t.(type) {
	case time.Time:
		parsed = v
	case string:
		var err error
		parsed, err = time.Parse(time.RFC3339, v)
		if err != nil {
			return "invalid time"
		}
	default:

		return "unknown time"
	}

	diff := time.Since(parsed)
	switch {
	case diff < time.Minute:

		return "just now"
	case diff < time.Hour:

		return fmt.Sprintf("%d min ago", int(diff.Minutes()))
	case diff < 24*time.Hour:

		return fmt.Sprintf("%d hr ago", int(diff.Hours()))
	default:

		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	}
}
