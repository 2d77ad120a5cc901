package report

import (
	"encoding/json"
	"math"
)

type jsonRow struct {
	Variable          string     `json:"variable"`
	Values            []any `json:"values"`
	UsedForClustering *bool      `json:"usedForClustering,omitempty"`
}

type jsonSummary struct {
	Groups []string  `json:"groups"`
	Rows   []jsonRow `json:"rows"`
}

// MarshalJSON encodes missing means as null and infinite means as the
// strings "+Inf" and "-Inf".
func (s *Summary) MarshalJSON() ([]byte, error) {
	out := jsonSummary{Groups: s.Groups, Rows: make([]jsonRow, 0, len(s.Rows))}
	for _, r := range s.Rows {
		jr := jsonRow{Variable: r.Variable, Values: make([]any, len(r.Values))}
		for i, x := range r.Values {
			switch {
			case math.IsNaN(x):
			case math.IsInf(x, 0):
				jr.Values[i] = infText(x)
			default:
				jr.Values[i] = x
			}
		}
		if s.ShowUsage {
			used := r.UsedForClustering
			jr.UsedForClustering = &used
		}
		out.Rows = append(out.Rows, jr)
	}
	return json.Marshal(out)
}
