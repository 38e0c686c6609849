package bq

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bigquery "google.golang.org/api/bigquery/v2"
)

func TestDecodeScalarsFromStrings(t *testing.T) {
	cases := []struct {
		name string
		typ  FieldType
		raw  string
		want Value
	}{
		{"string", TypeString, "hello", StringValue("hello")},
		{"integer", TypeInteger, "42", IntegerValue(42)},
		{"negative integer", TypeInteger, "-7", IntegerValue(-7)},
		{"float", TypeFloat, "3.5", FloatValue(3.5)},
		{"bool true", TypeBoolean, "true", BoolValue(true)},
		{"bool false", TypeBoolean, "false", BoolValue(false)},
		{"json", TypeJSON, `{"k":1}`, StringValue(`{"k":1}`)},
		{"date", TypeDate, "2023-07-13", DateValue(civil.Date{Year: 2023, Month: time.July, Day: 13})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			schema := NewTableSchema("col", tc.typ, ModeNullable)
			got, err := decodeValue(tc.raw, schema)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecodeScalarsFromNativeJSON(t *testing.T) {
	intSchema := NewTableSchema("n", TypeInteger, ModeNullable)
	got, err := decodeValue(float64(42), intSchema)
	require.NoError(t, err)
	assert.Equal(t, IntegerValue(42), got)

	floatSchema := NewTableSchema("f", TypeFloat, ModeNullable)
	got, err = decodeValue(float64(2.25), floatSchema)
	require.NoError(t, err)
	assert.Equal(t, FloatValue(2.25), got)

	boolSchema := NewTableSchema("b", TypeBoolean, ModeNullable)
	got, err = decodeValue(true, boolSchema)
	require.NoError(t, err)
	assert.Equal(t, BoolValue(true), got)

	// A numeric cell under a STRING column keeps its textual form.
	strSchema := NewTableSchema("s", TypeString, ModeNullable)
	got, err = decodeValue(float64(3.5), strSchema)
	require.NoError(t, err)
	assert.Equal(t, StringValue("3.5"), got)
}

func TestDecodeTimestamp(t *testing.T) {
	schema := NewTableSchema("ts", TypeTimestamp, ModeNullable)

	// Scientific notation, the usual tabledata representation.
	got, err := decodeValue("1.6892596205E9", schema)
	require.NoError(t, err)
	want := TimestampValue(time.Unix(1689259620, 500000000).UTC())
	assert.Equal(t, want, got)

	// Native number.
	got, err = decodeValue(float64(1689259620), schema)
	require.NoError(t, err)
	assert.Equal(t, TimestampValue(time.Unix(1689259620, 0).UTC()), got)
}

func TestDecodeCivilTimes(t *testing.T) {
	timeSchema := NewTableSchema("t", TypeTime, ModeNullable)
	got, err := decodeValue("12:34:56", timeSchema)
	require.NoError(t, err)
	assert.Equal(t, TimeValue(civil.Time{Hour: 12, Minute: 34, Second: 56}), got)

	dtSchema := NewTableSchema("dt", TypeDateTime, ModeNullable)
	got, err = decodeValue("2023-07-13T12:34:56", dtSchema)
	require.NoError(t, err)
	assert.Equal(t, DateTimeValue(civil.DateTime{
		Date: civil.Date{Year: 2023, Month: time.July, Day: 13},
		Time: civil.Time{Hour: 12, Minute: 34, Second: 56},
	}), got)

	// Fractional seconds, as the API emits for TIME/DATETIME columns.
	got, err = decodeValue("12:34:56.123456", timeSchema)
	require.NoError(t, err)
	assert.Equal(t, TimeValue(civil.Time{Hour: 12, Minute: 34, Second: 56, Nanosecond: 123456000}), got)

	got, err = decodeValue("2023-07-13T12:34:56.123456", dtSchema)
	require.NoError(t, err)
	assert.Equal(t, DateTimeValue(civil.DateTime{
		Date: civil.Date{Year: 2023, Month: time.July, Day: 13},
		Time: civil.Time{Hour: 12, Minute: 34, Second: 56, Nanosecond: 123456000},
	}), got)
}

func TestDecodeNullIsTotal(t *testing.T) {
	types := []FieldType{
		TypeString, TypeInteger, TypeFloat, TypeBoolean, TypeTimestamp,
		TypeDate, TypeTime, TypeDateTime, TypeRecord, TypeJSON,
	}
	for _, typ := range types {
		schema := NewTableSchema("col", typ, ModeNullable)
		got, err := decodeValue(nil, schema)
		require.NoError(t, err, "type %s", typ)
		assert.Equal(t, NullValue{}, got, "type %s", typ)
	}
}

func TestDecodeParseFailureKeepsValueAndReportsError(t *testing.T) {
	intSchema := NewTableSchema("n", TypeInteger, ModeNullable)
	got, err := decodeValue("not-a-number", intSchema)
	assert.Equal(t, IntegerValue(0), got)
	require.Error(t, err)
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, "n", decErr.Field)
	assert.Equal(t, TypeInteger, decErr.Type)

	floatSchema := NewTableSchema("f", TypeFloat, ModeNullable)
	got, err = decodeValue("wat", floatSchema)
	assert.Equal(t, FloatValue(0), got)
	assert.Error(t, err)

	dateSchema := NewTableSchema("d", TypeDate, ModeNullable)
	got, err = decodeValue("13/07/2023", dateSchema)
	assert.Equal(t, NullValue{}, got)
	assert.Error(t, err)
}

func TestDecodeRepeatedPreservesOrder(t *testing.T) {
	schema := NewTableSchema("tags", TypeString, ModeRepeated)
	raw := []any{
		map[string]any{"v": "a"},
		map[string]any{"v": "b"},
		map[string]any{"v": "c"},
	}
	got, err := decodeValue(raw, schema)
	require.NoError(t, err)
	assert.Equal(t, RepeatedValue{StringValue("a"), StringValue("b"), StringValue("c")}, got)
}

func TestDecodeRepeatedOfRecords(t *testing.T) {
	schema := NewRecordSchema("points", ModeRepeated,
		NewTableSchema("x", TypeInteger, ModeRequired),
		NewTableSchema("y", TypeInteger, ModeRequired),
	)
	raw := []any{
		map[string]any{"v": map[string]any{"f": []any{
			map[string]any{"v": "1"},
			map[string]any{"v": "2"},
		}}},
	}
	got, err := decodeValue(raw, schema)
	require.NoError(t, err)

	rep, ok := got.(RepeatedValue)
	require.True(t, ok)
	require.Len(t, rep, 1)
	point, ok := rep[0].(StructValue)
	require.True(t, ok)
	assert.Equal(t, IntegerValue(1), point.Get("x"))
	assert.Equal(t, IntegerValue(2), point.Get("y"))
}

func TestDecodeRecordIsPositional(t *testing.T) {
	schema := NewRecordSchema("pair", ModeNullable,
		NewTableSchema("first", TypeString, ModeNullable),
		NewTableSchema("second", TypeString, ModeNullable),
	)
	raw := map[string]any{"f": []any{
		map[string]any{"v": "a"},
		map[string]any{"v": "b"},
	}}
	got, err := decodeValue(raw, schema)
	require.NoError(t, err)

	record, ok := got.(StructValue)
	require.True(t, ok)
	assert.Equal(t, StringValue("a"), record.Get("first"))
	assert.Equal(t, StringValue("b"), record.Get("second"))

	cols := record.Columns()
	require.Len(t, cols, 2)
	assert.Equal(t, "first", cols[0].Name)
	assert.Equal(t, "second", cols[1].Name)
}

func TestDecodeRepeatedNonArrayIsNull(t *testing.T) {
	schema := NewTableSchema("tags", TypeString, ModeRepeated)
	got, err := decodeValue("lonely", schema)
	require.NoError(t, err)
	assert.Equal(t, NullValue{}, got)
}

func TestDecodeValueEnvelopeUnwraps(t *testing.T) {
	schema := NewTableSchema("col", TypeInteger, ModeNullable)
	got, err := decodeValue(map[string]any{"v": "9"}, schema)
	require.NoError(t, err)
	assert.Equal(t, IntegerValue(9), got)
}

func TestDecodeUnmatchedShapeIsNull(t *testing.T) {
	schema := NewTableSchema("col", TypeString, ModeNullable)
	got, err := decodeValue(map[string]any{"unexpected": 1}, schema)
	require.NoError(t, err)
	assert.Equal(t, NullValue{}, got)

	boolIntoInt := NewTableSchema("col", TypeInteger, ModeNullable)
	got, err = decodeValue(true, boolIntoInt)
	require.NoError(t, err)
	assert.Equal(t, NullValue{}, got)
}

func TestEncodePreservesNativeJSONTypes(t *testing.T) {
	row := NewRow([]Column{
		{Name: "n", Value: IntegerValue(42)},
		{Name: "f", Value: FloatValue(1.5)},
		{Name: "ok", Value: BoolValue(true)},
		{Name: "s", Value: StringValue("x")},
		{Name: "tags", Value: RepeatedValue{StringValue("a"), StringValue("b")}},
		{Name: "missing", Value: NullValue{}},
	})
	buf, err := row.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":42,"f":1.5,"ok":true,"s":"x","tags":["a","b"],"missing":null}`, string(buf))
}

func TestEncodeStructAsObject(t *testing.T) {
	inner := StructValue{NewRow([]Column{
		{Name: "x", Value: IntegerValue(1)},
	})}
	row := NewRow([]Column{{Name: "point", Value: inner}})
	buf, err := row.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"point":{"x":1}}`, string(buf))
}

func TestNewRowSubstitutesNilValues(t *testing.T) {
	row := NewRow([]Column{
		{Name: "a", Value: nil},
		{Name: "b", Value: IntegerValue(2)},
	})
	assert.Equal(t, NullValue{}, row.Get("a"))

	buf, err := row.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":null,"b":2}`, string(buf))
	assert.Equal(t, `{"b": 2}`, row.String())
}

func TestRowGetAbsentColumn(t *testing.T) {
	row := NewRow([]Column{{Name: "a", Value: IntegerValue(1)}})
	assert.Nil(t, row.Get("nope"))
	assert.Equal(t, 1, row.Len())
}

func TestStringRenderingFiltersNullColumns(t *testing.T) {
	row := NewRow([]Column{
		{Name: "a", Value: StringValue("x")},
		{Name: "b", Value: NullValue{}},
		{Name: "c", Value: IntegerValue(3)},
	})
	assert.Equal(t, `{"a": "x","c": 3}`, row.String())
}

// End to end: the [id INTEGER REQUIRED, tags STRING REPEATED] scenario
// straight off the tabledata wire format.
func TestDecodeAndReencodeWireRow(t *testing.T) {
	ts := &bigquery.TableSchema{Fields: []*bigquery.TableFieldSchema{
		{Name: "id", Type: "INTEGER", Mode: "REQUIRED"},
		{Name: "tags", Type: "STRING", Mode: "REPEATED"},
	}}
	wire := []*bigquery.TableRow{{F: []*bigquery.TableCell{
		{V: "7"},
		{V: []any{
			map[string]any{"v": "a"},
			map[string]any{"v": "b"},
		}},
	}}}

	rows, err := toRows(ts, wire)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, IntegerValue(7), row.Get("id"))
	assert.Equal(t, RepeatedValue{StringValue("a"), StringValue("b")}, row.Get("tags"))

	buf, err := row.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7,"tags":["a","b"]}`, string(buf))
}

func TestToRowsKeepsRowsOnDecodeError(t *testing.T) {
	ts := &bigquery.TableSchema{Fields: []*bigquery.TableFieldSchema{
		{Name: "n", Type: "INTEGER", Mode: "NULLABLE"},
	}}
	wire := []*bigquery.TableRow{
		{F: []*bigquery.TableCell{{V: "1"}}},
		{F: []*bigquery.TableCell{{V: "bogus"}}},
		{F: []*bigquery.TableCell{{V: "3"}}},
	}

	rows, err := toRows(ts, wire)
	require.Error(t, err)
	var decErr *DecodeError
	assert.ErrorAs(t, err, &decErr)

	// All three rows survive; the bad cell holds the fallback zero.
	require.Len(t, rows, 3)
	assert.Equal(t, IntegerValue(1), rows[0].Get("n"))
	assert.Equal(t, IntegerValue(0), rows[1].Get("n"))
	assert.Equal(t, IntegerValue(3), rows[2].Get("n"))
}
