package bq

import (
	bigquery "google.golang.org/api/bigquery/v2"
)

// FieldType is a BigQuery column type. Unrecognized wire strings map to
// TypeUnknown rather than failing the whole schema.
type FieldType string

const (
	TypeString    FieldType = "STRING"
	TypeInteger   FieldType = "INTEGER"
	TypeFloat     FieldType = "FLOAT"
	TypeBoolean   FieldType = "BOOLEAN"
	TypeTimestamp FieldType = "TIMESTAMP"
	TypeDate      FieldType = "DATE"
	TypeTime      FieldType = "TIME"
	TypeDateTime  FieldType = "DATETIME"
	TypeRecord    FieldType = "RECORD"
	TypeJSON      FieldType = "JSON"
	TypeUnknown   FieldType = "UNKNOWN"
)

// FieldMode is a BigQuery column mode. A missing mode on the wire maps
// to ModeUnknown, never an error.
type FieldMode string

const (
	ModeRequired FieldMode = "REQUIRED"
	ModeNullable FieldMode = "NULLABLE"
	ModeRepeated FieldMode = "REPEATED"
	ModeUnknown  FieldMode = "UNKNOWN"
)

// TableSchema describes one column. Record columns nest child columns
// in Fields; every other type carries an empty Fields slice.
type TableSchema struct {
	Name        string         `json:"name"`
	Type        FieldType      `json:"type"`
	Mode        FieldMode      `json:"mode"`
	Fields      []*TableSchema `json:"fields,omitempty"`
	Description string         `json:"description,omitempty"`
}

func NewTableSchema(name string, typ FieldType, mode FieldMode) *TableSchema {
	return &TableSchema{Name: name, Type: typ, Mode: mode}
}

func NewRecordSchema(name string, mode FieldMode, fields ...*TableSchema) *TableSchema {
	return &TableSchema{Name: name, Type: TypeRecord, Mode: mode, Fields: fields}
}

func parseFieldType(s string) FieldType {
	switch s {
	case "STRING":
		return TypeString
	case "INTEGER", "INT64":
		return TypeInteger
	case "FLOAT", "FLOAT64", "NUMERIC":
		return TypeFloat
	case "BOOLEAN", "BOOL":
		return TypeBoolean
	case "TIMESTAMP":
		return TypeTimestamp
	case "DATE":
		return TypeDate
	case "TIME":
		return TypeTime
	case "DATETIME":
		return TypeDateTime
	case "RECORD", "STRUCT":
		return TypeRecord
	case "JSON":
		return TypeJSON
	default:
		return TypeUnknown
	}
}

func parseFieldMode(s string) FieldMode {
	switch s {
	case "REQUIRED":
		return ModeRequired
	case "NULLABLE":
		return ModeNullable
	case "REPEATED":
		return ModeRepeated
	default:
		return ModeUnknown
	}
}

// fromFieldSchema converts one wire field, recursing into record
// children.
func fromFieldSchema(f *bigquery.TableFieldSchema) *TableSchema {
	if f == nil {
		return nil
	}
	s := &TableSchema{
		Name:        f.Name,
		Type:        parseFieldType(f.Type),
		Mode:        parseFieldMode(f.Mode),
		Description: f.Description,
	}
	for _, child := range f.Fields {
		s.Fields = append(s.Fields, fromFieldSchema(child))
	}
	return s
}

func fromTableSchema(ts *bigquery.TableSchema) []*TableSchema {
	if ts == nil {
		return nil
	}
	schemas := make([]*TableSchema, 0, len(ts.Fields))
	for _, f := range ts.Fields {
		schemas = append(schemas, fromFieldSchema(f))
	}
	return schemas
}

func toFieldSchema(s *TableSchema) *bigquery.TableFieldSchema {
	if s == nil {
		return nil
	}
	f := &bigquery.TableFieldSchema{
		Name:        s.Name,
		Type:        string(s.Type),
		Description: s.Description,
	}
	// UNKNOWN is a parse artifact, not a valid wire mode; omit it.
	if s.Mode != ModeUnknown {
		f.Mode = string(s.Mode)
	}
	for _, child := range s.Fields {
		f.Fields = append(f.Fields, toFieldSchema(child))
	}
	return f
}

func toTableSchema(schemas []*TableSchema) *bigquery.TableSchema {
	if len(schemas) == 0 {
		return nil
	}
	ts := &bigquery.TableSchema{}
	for _, s := range schemas {
		ts.Fields = append(ts.Fields, toFieldSchema(s))
	}
	return ts
}
