package lineage

import (
	"strings"

	"github.com/leapstack-labs/leapsql/pkg/core"
)

// datePart describes a function argument that holds a bare date part such
// as the minute in DATEDIFF(minute, a, b).
type datePart struct {
	index int
	arity int // 0 matches any argument count
}

// dateParts applies to every dialect. DATEDIFF and TIMEDIFF only take a date
// part in their three-argument form; MySQL's DATEDIFF(a, b) and TIMEDIFF(a, b)
// compare two columns. LAST_DAY(d, part) carries its part second.
var dateParts = map[string]datePart{
	"DATEADD":       {index: 0},
	"DATEDIFF":      {index: 0, arity: 3},
	"DATEDIFF_BIG":  {index: 0},
	"DATEPART":      {index: 0},
	"DATENAME":      {index: 0},
	"DATETRUNC":     {index: 0},
	"DATE_BUCKET":   {index: 0},
	"DATE_PART":     {index: 0},
	"DATE_TRUNC":    {index: 0},
	"TIMEADD":       {index: 0},
	"TIMEDIFF":      {index: 0, arity: 3},
	"TIMESTAMPADD":  {index: 0},
	"TIMESTAMPDIFF": {index: 0},
	"LAST_DAY":      {index: 1, arity: 2},
}

// isDatePartArg reports whether argument index of fn is a date part keyword
// rather than a column.
func isDatePartArg(fn *core.Function, index int) bool {
	dp, ok := dateParts[strings.ToUpper(fn.Name)]
	if !ok || dp.index != index {
		return false
	}
	return dp.arity == 0 || dp.arity == len(fn.Args)
}
