package bq

import (
	stdjson "encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	jsoniter "github.com/json-iterator/go"
	bigquery "google.golang.org/api/bigquery/v2"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Value is one decoded BigQuery cell. The set of variants is closed;
// every variant knows how to re-serialize itself as native JSON and
// how to render itself as debug text.
type Value interface {
	stdjson.Marshaler
	fmt.Stringer
	isValue()
}

type (
	StringValue    string
	IntegerValue   int64
	FloatValue     float64
	BoolValue      bool
	TimestampValue time.Time
	DateValue      civil.Date
	TimeValue      civil.Time
	DateTimeValue  civil.DateTime
	RepeatedValue  []Value
	NullValue      struct{}
)

// StructValue is a nested record; it embeds the Row it decodes to, so
// Get/Columns work on it directly.
type StructValue struct {
	Row
}

func (StringValue) isValue()    {}
func (IntegerValue) isValue()   {}
func (FloatValue) isValue()     {}
func (BoolValue) isValue()      {}
func (TimestampValue) isValue() {}
func (DateValue) isValue()      {}
func (TimeValue) isValue()      {}
func (DateTimeValue) isValue()  {}
func (StructValue) isValue()    {}
func (RepeatedValue) isValue()  {}
func (NullValue) isValue()      {}

func (v StringValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(v))
}

func (v IntegerValue) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, int64(v), 10), nil
}

func (v FloatValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(v))
}

func (v BoolValue) MarshalJSON() ([]byte, error) {
	if v {
		return []byte("true"), nil
	}
	return []byte("false"), nil
}

func (v TimestampValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(v).UTC().Format(time.RFC3339Nano))
}

func (v DateValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(civil.Date(v).String())
}

func (v TimeValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(civil.Time(v).String())
}

func (v DateTimeValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(civil.DateTime(v).String())
}

func (v RepeatedValue) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('[')
	for i, elem := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		buf, err := elem.MarshalJSON()
		if err != nil {
			return nil, err
		}
		b.Write(buf)
	}
	b.WriteByte(']')
	return []byte(b.String()), nil
}

func (NullValue) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String renderings follow BigQuery literal syntax: quoted strings,
// bare numbers, braces for records, brackets for arrays. Null columns
// render empty and are dropped from record/row text.

func (v StringValue) String() string {
	return strconv.Quote(string(v))
}

func (v IntegerValue) String() string {
	return strconv.FormatInt(int64(v), 10)
}

func (v FloatValue) String() string {
	return strconv.FormatFloat(float64(v), 'g', -1, 64)
}

func (v BoolValue) String() string {
	return strconv.FormatBool(bool(v))
}

func (v TimestampValue) String() string {
	return strconv.Quote(time.Time(v).UTC().Format(time.RFC3339Nano))
}

func (v DateValue) String() string {
	return strconv.Quote(civil.Date(v).String())
}

func (v TimeValue) String() string {
	return strconv.Quote(civil.Time(v).String())
}

func (v DateTimeValue) String() string {
	return strconv.Quote(civil.DateTime(v).String())
}

func (v RepeatedValue) String() string {
	parts := make([]string, 0, len(v))
	for _, elem := range v {
		if s := elem.String(); s != "" {
			parts = append(parts, s)
		}
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func (NullValue) String() string {
	return ""
}

// Column is one named cell of a row. Top-level query columns always
// carry the schema name; positional record cells may not.
type Column struct {
	Name  string
	Value Value
}

func (c Column) String() string {
	s := c.Value.String()
	if s == "" {
		return ""
	}
	if c.Name == "" {
		return s
	}
	return fmt.Sprintf("%q: %s", c.Name, s)
}

// Row is an ordered list of columns with O(1) lookup by name. The
// name index is built once at construction; rows are not mutated
// afterwards.
type Row struct {
	columns   []Column
	nameIndex map[string]int
}

func NewRow(columns []Column) Row {
	idx := make(map[string]int, len(columns))
	for i, col := range columns {
		// A nil value would blow up marshaling and rendering later.
		if col.Value == nil {
			columns[i].Value = NullValue{}
		}
		if col.Name != "" {
			if _, taken := idx[col.Name]; !taken {
				idx[col.Name] = i
			}
		}
	}
	return Row{columns: columns, nameIndex: idx}
}

// Get returns the value of the named column, or nil if absent.
func (r Row) Get(name string) Value {
	i, ok := r.nameIndex[name]
	if !ok {
		return nil
	}
	return r.columns[i].Value
}

func (r Row) Columns() []Column {
	return r.columns
}

func (r Row) Len() int {
	return len(r.columns)
}

func (r Row) String() string {
	parts := make([]string, 0, len(r.columns))
	for _, col := range r.columns {
		if s := col.String(); s != "" {
			parts = append(parts, s)
		}
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// MarshalJSON serializes the row as an object keyed by column name,
// preserving column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	for _, col := range r.columns {
		if !first {
			b.WriteByte(',')
		}
		first = false
		name, err := json.Marshal(col.Name)
		if err != nil {
			return nil, err
		}
		b.Write(name)
		b.WriteByte(':')
		val, err := col.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		b.Write(val)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

func (v StructValue) String() string {
	return v.Row.String()
}

func (v StructValue) MarshalJSON() ([]byte, error) {
	return v.Row.MarshalJSON()
}

// ########################################
// # Decoding
// ########################################

// decodeValue decodes one raw JSON cell against its column schema.
// Decoding is schema-driven: the column type decides how the raw shape
// is interpreted, except that Repeated mode always forces the array
// path regardless of type. A failed scalar parse yields the type's
// zero value plus a DecodeError; a failed civil-time parse yields
// Null plus a DecodeError. Shapes the schema cannot account for decode
// to Null without error.
func decodeValue(raw any, schema *TableSchema) (Value, error) {
	if raw == nil {
		return NullValue{}, nil
	}

	if schema.Mode == ModeRepeated {
		return decodeRepeated(raw, schema)
	}

	switch rv := raw.(type) {
	case string:
		return decodeScalar(rv, schema)
	case bool:
		if schema.Type == TypeBoolean {
			return BoolValue(rv), nil
		}
		return NullValue{}, nil
	case float64:
		return decodeNumber(rv, schema)
	case []any:
		// Arrays only appear under Repeated mode; reaching here means
		// the schema and the payload disagree.
		return decodeRepeated(raw, schema)
	case map[string]any:
		if f, ok := rv["f"]; ok {
			return decodeRecord(f, schema)
		}
		if v, ok := rv["v"]; ok {
			// Single-value envelope; unwrap and decode the payload.
			return decodeValue(v, schema)
		}
		return NullValue{}, nil
	default:
		return NullValue{}, nil
	}
}

// decodeScalar handles the string representation every BigQuery cell
// can arrive as, dispatching on the column type.
func decodeScalar(s string, schema *TableSchema) (Value, error) {
	switch schema.Type {
	case TypeString, TypeJSON:
		return StringValue(s), nil
	case TypeInteger:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return IntegerValue(0), &DecodeError{Field: schema.Name, Type: schema.Type, Raw: s, reason: err}
		}
		return IntegerValue(n), nil
	case TypeFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return FloatValue(0), &DecodeError{Field: schema.Name, Type: schema.Type, Raw: s, reason: err}
		}
		return FloatValue(f), nil
	case TypeBoolean:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return BoolValue(false), &DecodeError{Field: schema.Name, Type: schema.Type, Raw: s, reason: err}
		}
		return BoolValue(b), nil
	case TypeTimestamp:
		// Timestamps arrive as fractional epoch seconds, usually in
		// scientific notation ("1.689259620123456E9").
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return NullValue{}, &DecodeError{Field: schema.Name, Type: schema.Type, Raw: s, reason: err}
		}
		return epochToTimestamp(f), nil
	case TypeDate:
		d, err := civil.ParseDate(s)
		if err != nil {
			return NullValue{}, &DecodeError{Field: schema.Name, Type: schema.Type, Raw: s, reason: err}
		}
		return DateValue(d), nil
	case TypeTime:
		t, err := civil.ParseTime(s)
		if err != nil {
			return NullValue{}, &DecodeError{Field: schema.Name, Type: schema.Type, Raw: s, reason: err}
		}
		return TimeValue(t), nil
	case TypeDateTime:
		dt, err := civil.ParseDateTime(s)
		if err != nil {
			return NullValue{}, &DecodeError{Field: schema.Name, Type: schema.Type, Raw: s, reason: err}
		}
		return DateTimeValue(dt), nil
	default:
		return NullValue{}, nil
	}
}

// decodeNumber handles cells that arrive as native JSON numbers.
func decodeNumber(f float64, schema *TableSchema) (Value, error) {
	switch schema.Type {
	case TypeInteger:
		return IntegerValue(int64(f)), nil
	case TypeFloat:
		return FloatValue(f), nil
	case TypeTimestamp:
		return epochToTimestamp(f), nil
	case TypeString, TypeJSON:
		return StringValue(strconv.FormatFloat(f, 'g', -1, 64)), nil
	default:
		return NullValue{}, nil
	}
}

func epochToTimestamp(f float64) TimestampValue {
	sec := int64(f)
	nsec := int64(math.Round((f - float64(sec)) * 1e9))
	return TimestampValue(time.Unix(sec, nsec).UTC())
}

// decodeRepeated decodes an array cell, decoding each element against
// the same schema with the Repeated mode stripped so elements take the
// scalar/record path. Element order is preserved; a non-array payload
// under a Repeated column decodes to Null like any other unmatched
// shape.
func decodeRepeated(raw any, schema *TableSchema) (Value, error) {
	items, ok := raw.([]any)
	if !ok {
		return NullValue{}, nil
	}

	elemSchema := *schema
	elemSchema.Mode = ModeNullable

	values := make(RepeatedValue, 0, len(items))
	var errs []error
	for _, item := range items {
		v, err := decodeValue(item, &elemSchema)
		if err != nil {
			errs = append(errs, err)
		}
		values = append(values, v)
	}
	return values, errors.Join(errs...)
}

// decodeRecord decodes the {"f": [cells]} struct envelope positionally
// against the record's child schemas. Extra cells beyond the schema are
// dropped; missing cells leave the row short.
func decodeRecord(f any, schema *TableSchema) (Value, error) {
	cells, ok := f.([]any)
	if !ok {
		return NullValue{}, &DecodeError{Field: schema.Name, Type: schema.Type, Raw: f}
	}

	columns := make([]Column, 0, len(cells))
	var errs []error
	for i, cell := range cells {
		if i >= len(schema.Fields) {
			break
		}
		child := schema.Fields[i]
		raw := unwrapCell(cell)
		v, err := decodeValue(raw, child)
		if err != nil {
			errs = append(errs, err)
		}
		columns = append(columns, Column{Name: child.Name, Value: v})
	}
	return StructValue{NewRow(columns)}, errors.Join(errs...)
}

// unwrapCell strips the {"v": ...} envelope the tabledata wire format
// puts around every cell.
func unwrapCell(cell any) any {
	if m, ok := cell.(map[string]any); ok {
		if v, present := m["v"]; present {
			return v
		}
	}
	return cell
}

// decodeRow decodes one wire row against the top-level schemas,
// producing a named column per schema entry. Cell errors are joined;
// the row is returned regardless.
func decodeRow(row *bigquery.TableRow, schemas []*TableSchema) (Row, error) {
	columns := make([]Column, 0, len(row.F))
	var errs []error
	for i, cell := range row.F {
		if i >= len(schemas) {
			break
		}
		schema := schemas[i]
		var raw any
		if cell != nil {
			raw = cell.V
		}
		v, err := decodeValue(raw, schema)
		if err != nil {
			errs = append(errs, err)
		}
		columns = append(columns, Column{Name: schema.Name, Value: v})
	}
	return NewRow(columns), errors.Join(errs...)
}

// toRows decodes a page of wire rows. Decode errors never discard
// rows: all rows come back alongside the joined error.
func toRows(ts *bigquery.TableSchema, wireRows []*bigquery.TableRow) ([]Row, error) {
	schemas := fromTableSchema(ts)
	rows := make([]Row, 0, len(wireRows))
	var errs []error
	for _, wr := range wireRows {
		if wr == nil {
			continue
		}
		row, err := decodeRow(wr, schemas)
		if err != nil {
			errs = append(errs, err)
		}
		rows = append(rows, row)
	}
	return rows, errors.Join(errs...)
}
