package statement

import (
	"strings"
)

// scanState is the quote and comment state of a single left-to-right pass.
type scanState struct {
	inLiteral       bool
	inIdentifier    bool
	inLineComment   bool
	inBlockComment  bool
	afterTerminator bool
}

// consume advances over sql[i] when the scanner sits inside a literal or a
// comment and returns the index of the last byte consumed. ok is false when
// the byte is outside every quoted or commented span.
func (s *scanState) consume(sql string, i int) (last int, ok bool) {
	c := sql[i]
	switch {
	case s.inLineComment:
		if c == '\n' {
			s.inLineComment = false
		}
		return i, true
	case s.inBlockComment:
		if c == '*' && peek(sql, i) == '/' {
			s.inBlockComment = false
			return i + 1, true
		}
		return i, true
	case s.inLiteral:
		if c == '\\' && i+1 < len(sql) {
			return i + 1, true
		}
		if c == '\'' {
			s.inLiteral = false
		}
		return i, true
	case s.inIdentifier:
		if c == '"' {
			s.inIdentifier = false
		}
		return i, true
	}
	return i, false
}

// open starts a literal or comment at sql[i] if one begins there.
func (s *scanState) open(sql string, i int) (last int, ok bool) {
	switch c := sql[i]; {
	case c == '\'':
		s.inLiteral = true
	case c == '"':
		s.inIdentifier = true
	case c == '-' && peek(sql, i) == '-':
		s.inLineComment = true
		return i + 1, true
	case c == '/' && peek(sql, i) == '*':
		s.inBlockComment = true
		return i + 1, true
	default:
		return i, false
	}
	return i, true
}

func (s *scanState) err() error {
	switch {
	case s.inLiteral, s.inIdentifier:
		return ErrUnterminatedLiteral
	case s.inBlockComment:
		return ErrUnterminatedComment
	}
	return nil
}

func peek(sql string, i int) byte {
	if i+1 < len(sql) {
		return sql[i+1]
	}
	return 0
}

func isCommentStart(sql string, i int) bool {
	next := peek(sql, i)
	return (sql[i] == '-' && next == '-') || (sql[i] == '/' && next == '*')
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

// Split scans sql once and returns its sub-statements together with the
// parameter markers of each. A ';' outside literals and comments terminates a
// sub-statement; whitespace and comments that follow it stay with the
// statement they annotate. '?' markers are numbered across the whole batch.
func Split(sql string) (*Batch, error) {
	var (
		st      scanState
		start   int
		markers []Marker
		nextID  = 1
		batch   = &Batch{SQL: sql}
	)
	flush := func(end int) error {
		raw, err := newRawStatement(sql[start:end], markers)
		markers = nil
		if err != nil {
			return err
		}
		if raw != nil {
			batch.Statements = append(batch.Statements, *raw)
		}
		return nil
	}

	for i := 0; i < len(sql); i++ {
		if last, ok := st.consume(sql, i); ok {
			i = last
			continue
		}
		c := sql[i]
		if st.afterTerminator {
			if isSpace(c) {
				continue
			}
			if isCommentStart(sql, i) {
				i, _ = st.open(sql, i)
				continue
			}
			if err := flush(i); err != nil {
				return nil, err
			}
			start = i
			st.afterTerminator = false
		}
		if last, ok := st.open(sql, i); ok {
			i = last
			continue
		}
		switch {
		case c == ';':
			st.afterTerminator = true
		case c == '?':
			markers = append(markers, Marker{ID: nextID, Position: i - start, Length: 1})
			nextID++
		case c == '$' && isDigit(peek(sql, i)):
			j := i + 1
			id := 0
			for j < len(sql) && isDigit(sql[j]) {
				id = id*10 + int(sql[j]-'0')
				j++
			}
			markers = append(markers, Marker{ID: id, Position: i - start, Length: j - i})
			i = j - 1
		}
	}
	if err := st.err(); err != nil {
		return nil, err
	}
	if err := flush(len(sql)); err != nil {
		return nil, err
	}
	return batch, nil
}

func newRawStatement(sql string, markers []Marker) (*RawStatement, error) {
	cleaned, err := Clean(sql)
	if err != nil {
		return nil, err
	}
	cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, ";"))
	if cleaned == "" {
		return nil, nil
	}
	raw := &RawStatement{
		SQL:     sql,
		Cleaned: cleaned,
		Kind:    Classify(cleaned),
		Markers: markers,
	}
	if raw.Kind == ParamSetting {
		prop, err := ParseProperty(cleaned)
		if err != nil {
			return nil, err
		}
		raw.Property = &prop
	}
	return raw, nil
}

// Clean strips line and block comments outside literals and trims the
// result. A stripped line comment leaves its newline behind so tokens on
// adjacent lines are not glued together.
func Clean(sql string) (string, error) {
	var (
		st  scanState
		res strings.Builder
	)
	res.Grow(len(sql))
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case st.inLineComment:
			if c == '\n' {
				st.inLineComment = false
				res.WriteByte(c)
			}
			continue
		case st.inBlockComment:
			i, _ = st.consume(sql, i)
			continue
		case st.inLiteral || st.inIdentifier:
			last, _ := st.consume(sql, i)
			res.WriteString(sql[i : last+1])
			i = last
			continue
		}
		if last, ok := st.open(sql, i); ok {
			if st.inLiteral || st.inIdentifier {
				res.WriteByte(c)
			}
			i = last
			continue
		}
		res.WriteByte(c)
	}
	if err := st.err(); err != nil {
		return "", err
	}
	return strings.TrimSpace(res.String()), nil
}
