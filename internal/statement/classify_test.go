package statement

import (
	"testing"
)

func TestClassify(t *testing.T) {
	testcases := []struct {
		sql  string
		kind Kind
	}{
		{"", NonQuery},
		{"SELECT 1", Query},
		{"select * from t", Query},
		{"(select 1) union (select 2)", Query},
		{"((select 1))", Query},
		{"( (\n show tables))", Query},
		{"((insert into t values (1)))", NonQuery},
		{"WITH x AS (select 1) select * from x", Query},
		{"show tables", Query},
		{"describe t", Query},
		{"explain select 1", Query},
		{"exists", Query},
		{"call proc()", Query},
		{"selected_rows", NonQuery},
		{"insert into t values (1)", NonQuery},
		{"create table t (a int)", NonQuery},
		{"SET use_standard_sql = 0", ParamSetting},
		{"set\ttime_zone = 'UTC'", ParamSetting},
		{"settle", NonQuery},
	}
	for _, tc := range testcases {
		t.Run(tc.sql, func(t *testing.T) {
			assertEqualE(t, Classify(tc.sql), tc.kind)
		})
	}
}

func TestSetStatementExtractsProperty(t *testing.T) {
	batch, err := Split("SET use_standard_sql = 0")
	assertNilF(t, err)
	st := batch.Statements[0]
	assertEqualE(t, st.Kind, ParamSetting)
	assertNotNilF(t, st.Property)
	assertEqualE(t, st.Property.Key, "use_standard_sql")
	assertEqualE(t, st.Property.Value, "0")
}

func TestParseProperty(t *testing.T) {
	testcases := []struct {
		sql   string
		key   string
		value string
		err   error
	}{
		{"set a = 1", "a", "1", nil},
		{"SET time_zone = 'Europe/Berlin'", "time_zone", "Europe/Berlin", nil},
		{"set a = 'it''s'", "a", "it's", nil},
		{"set a = b = c", "a", "b = c", nil},
		{"set a", "", "", ErrMalformedSet},
		{"set = 1", "", "", ErrMalformedSet},
		{"set a b = 1", "", "", ErrMalformedSet},
		{"select 1", "", "", ErrMalformedSet},
	}
	for _, tc := range testcases {
		t.Run(tc.sql, func(t *testing.T) {
			prop, err := ParseProperty(tc.sql)
			if tc.err != nil {
				assertErrIsE(t, err, tc.err)
				return
			}
			assertNilF(t, err)
			assertEqualE(t, prop.Key, tc.key)
			assertEqualE(t, prop.Value, tc.value)
		})
	}
}
