package source

import (
	"cmp"
	"math"
	"slices"
)

// NumericKey returns the integer formed by every ASCII digit in name, with
// all other characters dropped. A name without digits yields 0; keys that do
// not fit in an int64 saturate at math.MaxInt64.
func NumericKey(name string) int64 {
	var n int64
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < '0' || c > '9' {
			continue
		}
		d := int64(c - '0')
		if n > (math.MaxInt64-d)/10 {
			return math.MaxInt64
		}
		n = n*10 + d
	}
	return n
}

// SortNumeric returns a copy of files ordered by NumericKey of their names,
// so frame2.png precedes frame10.png. Equal keys keep their input order.
func SortNumeric(files []File) []File {
	sorted := slices.Clone(files)
	slices.SortStableFunc(sorted, func(a, b File) int {
		return cmp.Compare(NumericKey(a.Name), NumericKey(b.Name))
	})
	return sorted
}
