package prediction

// Sample bounds a slice to at most maxCount elements by index stepping.
//
// When len(records) <= maxCount the input is returned as is. Otherwise the
// step is ceil(len/maxCount) and indices 0, step, 2*step, ... are kept in
// their original order. A non-positive maxCount yields an empty slice.
func Sample[T any](records []T, maxCount int) []T {
	if len(records) <= maxCount {
		return records
	}
	if maxCount <= 0 {
		return []T{}
	}

	step := (len(records) + maxCount - 1) / maxCount
	out := make([]T, 0, (len(records)+step-1)/step)
	for i := 0; i < len(records); i += step {
		out = append(out, records[i])
	}
	return out
}

// SampleResultSet applies Sample to the predictions of a result set, or to
// each of its level groups, and returns the bounded copy. Zone statistics
// are server-side aggregates and are left untouched.
func SampleResultSet(rs ResultSet, maxCount int) ResultSet {
	out := rs
	if !rs.Grouped() {
		out.Predictions = Sample(rs.Predictions, maxCount)
		return out
	}

	out.GroupedByLevel = make([]LevelGroup, len(rs.GroupedByLevel))
	for i, g := range rs.GroupedByLevel {
		out.GroupedByLevel[i] = LevelGroup{
			Level:   g.Level,
			Records: Sample(g.Records, maxCount),
		}
	}
	return out
}
