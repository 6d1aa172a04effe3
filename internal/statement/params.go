package statement

import (
	"fmt"
	"strings"
)

// Substitute replaces every marker of the batch with the literal text supplied
// for its id and returns the final SQL of each sub-statement in batch order.
// Values are already rendered literals; they are inserted verbatim.
func (b *Batch) Substitute(values map[int]string) ([]string, error) {
	out := make([]string, len(b.Statements))
	if !b.HasMarkers() && len(values) == 0 {
		for i, st := range b.Statements {
			out[i] = st.SQL
		}
		return out, nil
	}
	for _, st := range b.Statements {
		for _, m := range st.Markers {
			if _, ok := values[m.ID]; !ok {
				return nil, fmt.Errorf("%w: no value for parameter %d", ErrMissingParameterValue, m.ID)
			}
		}
	}
	if expected := b.DistinctIDs(); len(values) != expected {
		return nil, fmt.Errorf("%w: expected %d values, got %d", ErrParameterCountMismatch, expected, len(values))
	}
	for i, st := range b.Statements {
		sql, err := substituteOne(st, values)
		if err != nil {
			return nil, err
		}
		out[i] = sql
	}
	return out, nil
}

// SubstituteSQL is Substitute followed by concatenation, which reproduces the
// whole batch text with every marker replaced.
func (b *Batch) SubstituteSQL(values map[int]string) (string, error) {
	parts, err := b.Substitute(values)
	if err != nil {
		return "", err
	}
	return strings.Join(parts, ""), nil
}

func substituteOne(st RawStatement, values map[int]string) (string, error) {
	if len(st.Markers) == 0 {
		return st.SQL, nil
	}
	sql := st.SQL
	offset := 0
	for _, m := range st.Markers {
		value := values[m.ID]
		pos := m.Position + offset
		if pos < 0 || pos+m.Length > len(sql) {
			return "", fmt.Errorf("%w: marker %d at %d", ErrParameterPosition, m.ID, pos)
		}
		sql = sql[:pos] + value + sql[pos+m.Length:]
		offset += len(value) - m.Length
	}
	return sql, nil
}
