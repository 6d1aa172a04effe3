// Copyright (c) 2024 Ember Data Inc. All rights reserved.

package goember

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/emberdb/goember/internal/types"
)

const dateLayout = "2006-01-02"

// Fractional seconds are accepted after the seconds field by time.Parse
// even though the layouts do not spell them out.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	dateLayout,
}

var timestampTzLayouts = []string{
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02 15:04:05Z07",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05Z07",
	"2006-01-02 15:04:05 Z07:00",
	"2006-01-02 15:04:05 MST",
}

var errUnrecognizedTime = errors.New("unrecognized date/time format")

// locationCache avoids loading zone data for every decoded value.
var locationCache sync.Map

// loadLocation returns the named zone, or UTC for empty or unknown names.
func loadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	if loc, ok := locationCache.Load(name); ok {
		return loc.(*time.Location)
	}
	loc, err := types.LocationLoader(name)
	if err != nil {
		logger.Debugf("unknown time zone %v, using UTC. err: %v", name, err)
		loc = time.UTC
	}
	locationCache.Store(name, loc)
	return loc
}

func parseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		// timestamps are accepted and truncated to their date
		t, err = parseTimestamp(s, time.UTC)
		if err != nil {
			return time.Time{}, err
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return t, nil
}

// parseTimestamp reads a zone-less timestamp as wall clock time in loc.
func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	// some engines append an offset even for zone-less columns
	if t, err := parseTimestampTz(s); err == nil {
		return t.In(loc), nil
	}
	return time.Time{}, errUnrecognizedTime
}

// parseTimestampTz reads a timestamp carrying its own offset. Values without
// an offset are read as UTC.
func parseTimestampTz(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampTzLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errUnrecognizedTime
}

// parseTime dispatches on the column type.
func parseTime(d *types.Descriptor, s string) (time.Time, error) {
	switch d.Base {
	case types.DateType:
		return parseDate(s)
	case types.TimestampType:
		return parseTimestamp(s, loadLocation(d.TimeZone))
	default:
		return parseTimestampTz(s)
	}
}
