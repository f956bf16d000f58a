package encoding

import "fmt"

// Run is Len consecutive copies of Value.
type Run[T comparable] struct {
	Value T
	Len   int
}

// EncodeRuns collapses equal neighbours of vals into runs.
func EncodeRuns[T comparable](vals []T) []Run[T] {
	var out []Run[T]
	for i := 0; i < len(vals); {
		v := vals[i]
		n := 1
		for j := i + 1; j < len(vals) && vals[j] == v && n < 1<<31; j++ {
			n++
		}
		out = append(out, Run[T]{Value: v, Len: n})
		i += n
	}
	return out
}

// RunsLen is the number of values the runs expand to.
func RunsLen[T comparable](runs []Run[T]) int {
	total := 0
	for _, r := range runs {
		total += r.Len
	}
	return total
}

func DecodeRuns[T comparable](runs []Run[T]) ([]T, error) {
	total := 0
	for i, r := range runs {
		if r.Len <= 0 {
			return nil, fmt.Errorf("run %d: bad length %d", i, r.Len)
		}
		total += r.Len
	}
	out := make([]T, 0, total)
	for _, r := range runs {
		for k := 0; k < r.Len; k++ {
			out = append(out, r.Value)
		}
	}
	return out, nil
}
