package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/leolhan1425/bc-tracker/internal/models"
	"gopkg.in/yaml.v3"
)

// writeStructured writes v as JSON or YAML.
func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("format %q has no structured encoding", format)
	}
}

// sortCounts orders a count map by count descending then name.
func sortCounts(m map[string]int) []models.CategoryCount {
	out := make([]models.CategoryCount, 0, len(m))
	for k, v := range m {
		out = append(out, models.CategoryCount{Category: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out
}
