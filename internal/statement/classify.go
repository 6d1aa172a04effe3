package statement

import (
	"fmt"
	"strings"
)

var queryKeywords = []string{"show", "select", "describe", "exists", "explain", "with", "call"}

const setKeyword = "set"

// Classify decides the Kind of a cleaned sub-statement. An empty statement
// is a NonQuery.
func Classify(cleaned string) Kind {
	s := strings.TrimLeft(cleaned, "( \t\r\n")
	s = strings.TrimSpace(s)
	if s == "" {
		return NonQuery
	}
	for _, kw := range queryKeywords {
		if hasKeyword(s, kw) {
			return Query
		}
	}
	if isSetStatement(s) {
		return ParamSetting
	}
	return NonQuery
}

// hasKeyword reports whether s starts with kw as a whole word, ignoring case.
func hasKeyword(s, kw string) bool {
	if len(s) < len(kw) || !strings.EqualFold(s[:len(kw)], kw) {
		return false
	}
	return len(s) == len(kw) || !isIdentByte(s[len(kw)])
}

func isSetStatement(s string) bool {
	return len(s) > len(setKeyword) &&
		strings.EqualFold(s[:len(setKeyword)], setKeyword) &&
		isSpace(s[len(setKeyword)])
}

func isIdentByte(c byte) bool {
	return c == '_' || isDigit(c) || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// ParseProperty extracts the key and value of a cleaned SET statement. The
// text after the keyword is split once on the first '='; surrounding single
// quotes are removed from the value.
func ParseProperty(cleaned string) (Property, error) {
	s := strings.TrimSpace(cleaned)
	if !isSetStatement(s) {
		return Property{}, fmt.Errorf("%w: %v", ErrMalformedSet, cleaned)
	}
	parts := strings.SplitN(s[len(setKeyword):], "=", 2)
	if len(parts) != 2 {
		return Property{}, fmt.Errorf("%w: %v", ErrMalformedSet, cleaned)
	}
	key := strings.TrimSpace(parts[0])
	value := strings.TrimSpace(parts[1])
	if key == "" || strings.ContainsAny(key, " \t\n") {
		return Property{}, fmt.Errorf("%w: %v", ErrMalformedSet, cleaned)
	}
	if len(value) >= 2 && value[0] == '\'' && value[len(value)-1] == '\'' {
		value = strings.ReplaceAll(value[1:len(value)-1], "''", "'")
	}
	return Property{Key: key, Value: value}, nil
}
