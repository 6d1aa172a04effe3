package goember

import (
	"testing"
	"time"

	"github.com/emberdb/goember/internal/types"
)

func TestParseTimestampLayouts(t *testing.T) {
	want := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, s := range []string{"2024-01-02 03:04:05", "2024-01-02T03:04:05", " 2024-01-02 03:04:05 "} {
		got, err := parseTimestamp(s, time.UTC)
		assertNilE(t, err, s)
		assertTrueE(t, got.Equal(want), s)
	}
	got, err := parseTimestamp("2024-01-02 03:04:05.123456", time.UTC)
	assertNilF(t, err)
	assertEqualE(t, got.Nanosecond(), 123456000)

	_, err = parseTimestamp("yesterday", time.UTC)
	assertErrIsE(t, err, errUnrecognizedTime)
}

func TestParseTimestampInLocation(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("zone data unavailable")
	}
	got, err := parseTimestamp("2024-07-01 12:00:00", berlin)
	assertNilF(t, err)
	assertTrueE(t, got.Equal(time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)), "wall clock in the column zone")

	// an explicit offset wins over the column zone
	got, err = parseTimestamp("2024-07-01 12:00:00+00", berlin)
	assertNilF(t, err)
	assertTrueE(t, got.Equal(time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)))
	assertEqualE(t, got.Location(), berlin)
}

func TestParseTimestampTz(t *testing.T) {
	want := time.Date(2024, 1, 2, 1, 4, 5, 0, time.UTC)
	for _, s := range []string{
		"2024-01-02 03:04:05+02",
		"2024-01-02 03:04:05+02:00",
		"2024-01-02 03:04:05+0200",
		"2024-01-02T03:04:05+02:00",
		"2024-01-02 01:04:05Z",
		"2024-01-02 01:04:05",
	} {
		got, err := parseTimestampTz(s)
		assertNilE(t, err, s)
		assertTrueE(t, got.Equal(want), s)
	}
}

func TestParseDate(t *testing.T) {
	got, err := parseDate("2024-02-29")
	assertNilF(t, err)
	assertTrueE(t, got.Equal(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)))
	got, err = parseDate("2024-02-29 23:59:59")
	assertNilF(t, err)
	assertTrueE(t, got.Equal(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)), "truncated to the date")
	_, err = parseDate("2023-02-29")
	assertNotNilE(t, err)
}

func TestLoadLocation(t *testing.T) {
	assertEqualE(t, loadLocation(""), time.UTC)
	orig := types.LocationLoader
	defer func() { types.LocationLoader = orig }()
	calls := 0
	types.LocationLoader = func(name string) (*time.Location, error) {
		calls++
		return time.FixedZone(name, 3600), nil
	}
	loc := loadLocation("Test/Cached")
	assertEqualE(t, loc.String(), "Test/Cached")
	loadLocation("Test/Cached")
	assertEqualE(t, calls, 1)

	types.LocationLoader = orig
	assertEqualE(t, loadLocation("Not/AZone"), time.UTC)
}

func TestParseTimeDispatch(t *testing.T) {
	d := mustParseType(t, "timestamptz")
	got, err := parseTime(d, "2024-01-02 03:04:05+01")
	assertNilF(t, err)
	assertTrueE(t, got.Equal(time.Date(2024, 1, 2, 2, 4, 5, 0, time.UTC)))
}
