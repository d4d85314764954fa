package google

import (
	"fmt"

	"harvestdash/internal/core"
)

// toSheet converts a values matrix (as returned by the Sheets API) into a
// sheet. The first row is the header; the API omits trailing empty cells,
// so rows may be shorter than the header.
func toSheet(name string, values [][]interface{}) core.Sheet {
	if len(values) == 0 {
		return core.NewSheet(name, []string{}, nil)
	}
	rows := make([][]string, 0, len(values)-1)
	for _, r := range values[1:] {
		rows = append(rows, toStrings(r))
	}
	return core.NewSheet(name, toStrings(values[0]), rows)
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		if v == nil {
			continue
		}
		out[i] = fmt.Sprint(v)
	}
	return out
}
