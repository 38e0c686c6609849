package bq

import (
	"github.com/google/uuid"
	bigquery "google.golang.org/api/bigquery/v2"
	"google.golang.org/api/googleapi"
)

const defaultPageSize = 1000

// ListParam tunes paginated list/read operations. Builders return the
// receiver so params chain fluently; a param is built per call, never
// shared.
type ListParam struct {
	maxResults     int64
	pageToken      string
	numResultLimit int
}

func NewListParam() *ListParam {
	return &ListParam{maxResults: defaultPageSize}
}

// MaxResults sets the page size requested from the API.
func (p *ListParam) MaxResults(n int64) *ListParam {
	p.maxResults = n
	return p
}

// PageToken starts listing from a prior response's continuation token.
func (p *ListParam) PageToken(t string) *ListParam {
	p.pageToken = t
	return p
}

// NumResultLimit stops pagination once at least n results have been
// accumulated. Zero means unlimited. The final count may overshoot by
// up to one page.
func (p *ListParam) NumResultLimit(n int) *ListParam {
	p.numResultLimit = n
	return p
}

// QueryParam configures Query.
type QueryParam struct {
	query          string
	useLegacySQL   bool
	dryRun         bool
	maxResults     int64
	numResultLimit int
}

func NewQueryParam(query string) *QueryParam {
	return &QueryParam{query: query, maxResults: defaultPageSize}
}

func (p *QueryParam) UseLegacySQL(v bool) *QueryParam {
	p.useLegacySQL = v
	return p
}

// DryRun validates the query and returns only its result schema.
func (p *QueryParam) DryRun(v bool) *QueryParam {
	p.dryRun = v
	return p
}

func (p *QueryParam) MaxResults(n int64) *QueryParam {
	p.maxResults = n
	return p
}

func (p *QueryParam) NumResultLimit(n int) *QueryParam {
	p.numResultLimit = n
	return p
}

func (p *QueryParam) toQueryRequest() *bigquery.QueryRequest {
	return &bigquery.QueryRequest{
		Query:      p.query,
		MaxResults: p.maxResults,
		DryRun:     p.dryRun,
		// A pointer so false still reaches the wire; the API defaults
		// to legacy SQL.
		UseLegacySql: googleapi.Bool(p.useLegacySQL),
	}
}

// GetQueryResultParam configures GetQueryResults: it continues a job
// started by Query from a page token.
type GetQueryResultParam struct {
	jobID          string
	pageToken      string
	maxResults     int64
	numResultLimit int
}

func NewGetQueryResultParam(jobID, pageToken string) *GetQueryResultParam {
	return &GetQueryResultParam{jobID: jobID, pageToken: pageToken, maxResults: defaultPageSize}
}

func (p *GetQueryResultParam) MaxResults(n int64) *GetQueryResultParam {
	p.maxResults = n
	return p
}

func (p *GetQueryResultParam) NumResultLimit(n int) *GetQueryResultParam {
	p.numResultLimit = n
	return p
}

// CreateTableParam configures CreateTable.
type CreateTableParam struct {
	description string
	schemas     []*TableSchema
}

func NewCreateTableParam() *CreateTableParam {
	return &CreateTableParam{}
}

func (p *CreateTableParam) Description(d string) *CreateTableParam {
	p.description = d
	return p
}

func (p *CreateTableParam) Schema(schemas []*TableSchema) *CreateTableParam {
	p.schemas = schemas
	return p
}

// InsertAllParam configures the streaming insert.
type InsertAllParam struct {
	dataset             string
	table               string
	skipInvalidRows     bool
	ignoreUnknownValues bool
	traceID             string
}

func NewInsertAllParam(dataset, table string) *InsertAllParam {
	return &InsertAllParam{dataset: dataset, table: table}
}

func (p *InsertAllParam) SkipInvalidRows(v bool) *InsertAllParam {
	p.skipInvalidRows = v
	return p
}

func (p *InsertAllParam) IgnoreUnknownValues(v bool) *InsertAllParam {
	p.ignoreUnknownValues = v
	return p
}

// SetTraceID stamps the insert with a fresh UUID and returns it. Each
// row's insert ID is derived from it, which makes the retried insert
// idempotent on the server side and greppable in logs.
func (p *InsertAllParam) SetTraceID() string {
	p.traceID = uuid.NewString()
	return p.traceID
}

// TraceID returns the current trace ID, empty if never set.
func (p *InsertAllParam) TraceID() string {
	return p.traceID
}

// WriteDisposition controls what a query-to-table job does when the
// destination already holds data.
type WriteDisposition string

const (
	WriteAppend   WriteDisposition = "WRITE_APPEND"
	WriteTruncate WriteDisposition = "WRITE_TRUNCATE"
	WriteEmpty    WriteDisposition = "WRITE_EMPTY"
)

// QueryToTableParam configures QueryToTable: a query job that writes
// its result into a destination table.
type QueryToTableParam struct {
	query            string
	dstProject       string
	dstDataset       string
	dstTable         string
	useLegacySQL     bool
	dryRun           bool
	writeDisposition WriteDisposition
}

func NewQueryToTableParam(query, dstProject, dstDataset, dstTable string) *QueryToTableParam {
	return &QueryToTableParam{
		query:            query,
		dstProject:       dstProject,
		dstDataset:       dstDataset,
		dstTable:         dstTable,
		writeDisposition: WriteEmpty,
	}
}

func (p *QueryToTableParam) UseLegacySQL(v bool) *QueryToTableParam {
	p.useLegacySQL = v
	return p
}

func (p *QueryToTableParam) DryRun(v bool) *QueryToTableParam {
	p.dryRun = v
	return p
}

func (p *QueryToTableParam) WriteDisposition(d WriteDisposition) *QueryToTableParam {
	p.writeDisposition = d
	return p
}

func (p *QueryToTableParam) toJobConfiguration() *bigquery.JobConfiguration {
	return &bigquery.JobConfiguration{
		DryRun: p.dryRun,
		Query: &bigquery.JobConfigurationQuery{
			Query:    p.query,
			Priority: "INTERACTIVE",
			DestinationTable: &bigquery.TableReference{
				ProjectId: p.dstProject,
				DatasetId: p.dstDataset,
				TableId:   p.dstTable,
			},
			WriteDisposition: string(p.writeDisposition),
			UseLegacySql:     googleapi.Bool(p.useLegacySQL),
		},
	}
}
