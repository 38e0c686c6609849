package bq

import (
	"context"
	"fmt"
	"time"

	bigquery "google.golang.org/api/bigquery/v2"

	"github.com/n-h-n/go-bq/log"
)

// SchemaBuilder is implemented by row types that know their own table
// schema, letting InsertAll create the destination table on demand.
type SchemaBuilder interface {
	BqSchema() []*TableSchema
}

// InsertAll streams data into p's table, creating the table from the
// row type's schema if it does not exist yet. Rows are serialized to
// JSON objects; when a trace ID is set each row carries a derived
// insert ID, which deduplicates rows across retries.
//
// Freshly created tables reject streaming inserts with a bad-request
// error until their metadata propagates, so exactly that error class
// is retried with quadratic backoff; every other failure surfaces
// immediately.
func InsertAll[T SchemaBuilder](ctx context.Context, c *Client, data []T, p *InsertAllParam) error {
	if p == nil {
		return fmt.Errorf("insert all param is required")
	}
	if len(data) == 0 {
		return nil
	}

	createParam := NewCreateTableParam().Schema(data[0].BqSchema())
	if _, err := c.CreateTable(ctx, p.dataset, p.table, createParam); err != nil {
		// Usually "already exists"; a real failure resurfaces from the
		// insert below.
		if c.verboseMode {
			log.Log.Debugf(ctx, "create table %s.%s before insert: %v", p.dataset, p.table, err)
		}
	}

	rows := make([]*bigquery.TableDataInsertAllRequestRows, 0, len(data))
	for i, d := range data {
		buf, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("failed to serialize row %d: %w", i, err)
		}
		var obj map[string]bigquery.JsonValue
		if err := json.Unmarshal(buf, &obj); err != nil {
			return fmt.Errorf("failed to serialize row %d: %w", i, err)
		}
		row := &bigquery.TableDataInsertAllRequestRows{Json: obj}
		if p.traceID != "" {
			row.InsertId = fmt.Sprintf("%s-%d", p.traceID, i)
		}
		rows = append(rows, row)
	}

	req := &bigquery.TableDataInsertAllRequest{
		IgnoreUnknownValues: p.ignoreUnknownValues,
		SkipInvalidRows:     p.skipInvalidRows,
		Rows:                rows,
	}

	return c.insertAllWithRetry(ctx, p, req)
}

func (c *Client) insertAllWithRetry(ctx context.Context, p *InsertAllParam, req *bigquery.TableDataInsertAllRequest) error {
	for attempt := 0; ; attempt++ {
		if err := c.throttle(ctx); err != nil {
			return err
		}

		res, err := c.svc.Tabledata.InsertAll(c.projectID, p.dataset, p.table, req).Context(ctx).Do()
		if err == nil {
			if len(res.InsertErrors) > 0 {
				return fmt.Errorf("insert into %s.%s rejected %d rows", p.dataset, p.table, len(res.InsertErrors))
			}
			if c.verboseMode {
				log.Log.Debugf(ctx, "inserted %d rows into %s.%s after %d attempt(s)", len(req.Rows), p.dataset, p.table, attempt+1)
			}
			return nil
		}

		if Classify(err) != ClassBadRequest || attempt >= c.insertRetryMax {
			return fmt.Errorf("failed to insert into %s.%s: %w", p.dataset, p.table, err)
		}

		retry := attempt + 1
		backoff := c.insertRetryBase * time.Duration(retry*retry)
		if c.verboseMode {
			log.Log.Debugf(ctx, "insert into %s.%s failed (retry %d/%d in %s): %v", p.dataset, p.table, retry, c.insertRetryMax, backoff, err)
		}
		if err := sleep(ctx, backoff); err != nil {
			return err
		}
	}
}
