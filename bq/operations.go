package bq

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"
	bigquery "google.golang.org/api/bigquery/v2"

	"github.com/n-h-n/go-bq/log"
)

// ListProjects lists the projects visible to the authenticated
// identity, following continuation tokens until exhausted or the
// result limit is reached.
func (c *Client) ListProjects(ctx context.Context, p *ListParam) ([]Project, error) {
	if p == nil {
		p = NewListParam()
	}

	var projects []Project
	token := p.pageToken
	for {
		if err := c.throttle(ctx); err != nil {
			return projects, err
		}

		call := c.svc.Projects.List().Context(ctx)
		if p.maxResults > 0 {
			call = call.MaxResults(p.maxResults)
		}
		if token != "" {
			call = call.PageToken(token)
		}

		res, err := call.Do()
		if err != nil {
			return projects, fmt.Errorf("failed to list projects: %w", err)
		}

		for _, pr := range res.Projects {
			projects = append(projects, Project{
				FriendlyName: pr.FriendlyName,
				ID:           pr.Id,
				NumericID:    strconv.FormatUint(pr.NumericId, 10),
			})
		}

		if res.NextPageToken == "" || len(res.Projects) == 0 {
			break
		}
		if p.numResultLimit > 0 && len(projects) >= p.numResultLimit {
			break
		}
		token = res.NextPageToken
	}

	if c.verboseMode {
		log.Log.Debugf(ctx, "listed %d projects", len(projects))
	}

	return projects, nil
}

// ListDatasets lists the datasets of the client's project.
func (c *Client) ListDatasets(ctx context.Context, p *ListParam) ([]Dataset, error) {
	if p == nil {
		p = NewListParam()
	}

	var datasets []Dataset
	token := p.pageToken
	for {
		if err := c.throttle(ctx); err != nil {
			return datasets, err
		}

		call := c.svc.Datasets.List(c.projectID).Context(ctx)
		if p.maxResults > 0 {
			call = call.MaxResults(p.maxResults)
		}
		if token != "" {
			call = call.PageToken(token)
		}

		res, err := call.Do()
		if err != nil {
			return datasets, fmt.Errorf("failed to list datasets: %w", err)
		}

		for _, d := range res.Datasets {
			if d.DatasetReference == nil {
				continue
			}
			datasets = append(datasets, Dataset{
				Project: d.DatasetReference.ProjectId,
				Dataset: d.DatasetReference.DatasetId,
			})
		}

		if res.NextPageToken == "" || len(res.Datasets) == 0 {
			break
		}
		if p.numResultLimit > 0 && len(datasets) >= p.numResultLimit {
			break
		}
		token = res.NextPageToken
	}

	if c.verboseMode {
		log.Log.Debugf(ctx, "listed %d datasets in project %s", len(datasets), c.projectID)
	}

	return datasets, nil
}

// ListTables lists the tables of a dataset.
func (c *Client) ListTables(ctx context.Context, dataset string, p *ListParam) ([]*Table, error) {
	if p == nil {
		p = NewListParam()
	}

	var tables []*Table
	token := p.pageToken
	for {
		if err := c.throttle(ctx); err != nil {
			return tables, err
		}

		call := c.svc.Tables.List(c.projectID, dataset).Context(ctx)
		if p.maxResults > 0 {
			call = call.MaxResults(p.maxResults)
		}
		if token != "" {
			call = call.PageToken(token)
		}

		res, err := call.Do()
		if err != nil {
			return tables, fmt.Errorf("failed to list tables in dataset %s: %w", dataset, err)
		}

		for _, t := range res.Tables {
			if t.TableReference == nil {
				continue
			}
			tables = append(tables, &Table{
				Dataset:   NewDataset(t.TableReference.ProjectId, t.TableReference.DatasetId),
				TableID:   t.TableReference.TableId,
				CreatedAt: t.CreationTime,
				ExpiredAt: t.ExpirationTime,
			})
		}

		if res.NextPageToken == "" || len(res.Tables) == 0 {
			break
		}
		if p.numResultLimit > 0 && len(tables) >= p.numResultLimit {
			break
		}
		token = res.NextPageToken
	}

	if c.verboseMode {
		log.Log.Debugf(ctx, "listed %d tables in dataset %s", len(tables), dataset)
	}

	return tables, nil
}

// GetTable fetches table metadata, schema included.
func (c *Client) GetTable(ctx context.Context, dataset, table string) (*Table, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}

	res, err := c.svc.Tables.Get(c.projectID, dataset, table).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get table %s.%s: %w", dataset, table, err)
	}

	return fromTable(res), nil
}

// GetTableSchema fetches just the schema of a table.
func (c *Client) GetTableSchema(ctx context.Context, dataset, table string) ([]*TableSchema, error) {
	t, err := c.GetTable(ctx, dataset, table)
	if err != nil {
		return nil, err
	}
	return t.Schemas, nil
}

// CreateTable creates a table with the given schema.
func (c *Client) CreateTable(ctx context.Context, dataset, table string, p *CreateTableParam) (*Table, error) {
	if p == nil {
		p = NewCreateTableParam()
	}

	if err := c.throttle(ctx); err != nil {
		return nil, err
	}

	if c.verboseMode {
		log.Log.Debugf(ctx, "creating table %s in dataset %s", table, dataset)
	}

	req := &bigquery.Table{
		TableReference: &bigquery.TableReference{
			ProjectId: c.projectID,
			DatasetId: dataset,
			TableId:   table,
		},
		Description: p.description,
		Schema:      toTableSchema(p.schemas),
	}

	res, err := c.svc.Tables.Insert(c.projectID, dataset, req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create table %s.%s: %w", dataset, table, err)
	}

	return fromTable(res), nil
}

// DeleteTable deletes a table.
func (c *Client) DeleteTable(ctx context.Context, dataset, table string) error {
	if err := c.throttle(ctx); err != nil {
		return err
	}

	err := c.svc.Tables.Delete(c.projectID, dataset, table).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to delete table %s.%s: %w", dataset, table, err)
	}

	if c.verboseMode {
		log.Log.Debugf(ctx, "deleted table %s in dataset %s", table, dataset)
	}

	return nil
}

// Query runs a SQL query. A dry run returns the QuerySchema variant
// carrying the inferred result schema; a real run returns QueryData
// with every page's rows decoded and concatenated in order. Decode
// errors are joined and returned alongside the rows, never instead of
// them.
func (c *Client) Query(ctx context.Context, p *QueryParam) (QueryResult, error) {
	if p == nil {
		return nil, fmt.Errorf("query param is required")
	}

	if err := c.throttle(ctx); err != nil {
		return nil, err
	}

	if c.verboseMode {
		log.Log.Debugf(ctx, "executing query: %s", p.query)
	}

	res, err := c.svc.Jobs.Query(c.projectID, p.toQueryRequest()).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to run query: %w", err)
	}

	if p.dryRun {
		return QuerySchema(fromTableSchema(res.Schema)), nil
	}

	rows, decErr := toRows(res.Schema, res.Rows)

	if res.PageToken != "" && !limitReached(p.numResultLimit, len(rows)) {
		if res.JobReference == nil {
			return QueryData(rows), errors.Join(decErr, fmt.Errorf("query response has continuation token but no job reference"))
		}
		gp := NewGetQueryResultParam(res.JobReference.JobId, res.PageToken).MaxResults(p.maxResults)
		if p.numResultLimit > 0 {
			gp = gp.NumResultLimit(p.numResultLimit - len(rows))
		}
		more, err := c.GetQueryResults(ctx, gp)
		rows = append(rows, more...)
		decErr = errors.Join(decErr, err)
	}

	return QueryData(rows), decErr
}

// GetQueryResults fetches the remaining pages of a query job, starting
// from the given page token, and decodes them against the job's
// schema.
func (c *Client) GetQueryResults(ctx context.Context, p *GetQueryResultParam) ([]Row, error) {
	if p == nil {
		return nil, fmt.Errorf("get query result param is required")
	}

	var rows []Row
	var decErrs []error
	token := p.pageToken
	for {
		if err := c.throttle(ctx); err != nil {
			return rows, errors.Join(append(decErrs, err)...)
		}

		call := c.svc.Jobs.GetQueryResults(c.projectID, p.jobID).Context(ctx)
		if p.maxResults > 0 {
			call = call.MaxResults(p.maxResults)
		}
		if token != "" {
			call = call.PageToken(token)
		}

		res, err := call.Do()
		if err != nil {
			return rows, errors.Join(append(decErrs, fmt.Errorf("failed to get query results for job %s: %w", p.jobID, err))...)
		}

		pageRows, decErr := toRows(res.Schema, res.Rows)
		if decErr != nil {
			decErrs = append(decErrs, decErr)
		}
		rows = append(rows, pageRows...)

		if res.PageToken == "" || len(res.Rows) == 0 {
			break
		}
		if limitReached(p.numResultLimit, len(rows)) {
			break
		}
		token = res.PageToken
	}

	if c.verboseMode {
		log.Log.Debugf(ctx, "fetched %d rows for job %s", len(rows), p.jobID)
	}

	return rows, errors.Join(decErrs...)
}

// ListTableData reads a table's rows. The table schema and the first
// data page are fetched concurrently; both results are checked before
// any decoding. Further pages follow sequentially.
func (c *Client) ListTableData(ctx context.Context, dataset, table string, p *ListParam) ([]Row, error) {
	if p == nil {
		p = NewListParam()
	}

	var (
		meta  *bigquery.Table
		first *bigquery.TableDataList
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := c.throttle(gctx); err != nil {
			return err
		}
		res, err := c.svc.Tables.Get(c.projectID, dataset, table).Context(gctx).Do()
		if err != nil {
			return fmt.Errorf("failed to get table %s.%s: %w", dataset, table, err)
		}
		meta = res
		return nil
	})
	g.Go(func() error {
		if err := c.throttle(gctx); err != nil {
			return err
		}
		call := c.svc.Tabledata.List(c.projectID, dataset, table).Context(gctx)
		if p.maxResults > 0 {
			call = call.MaxResults(p.maxResults)
		}
		if p.pageToken != "" {
			call = call.PageToken(p.pageToken)
		}
		res, err := call.Do()
		if err != nil {
			return fmt.Errorf("failed to list table data for %s.%s: %w", dataset, table, err)
		}
		first = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rows, decErr := toRows(meta.Schema, first.Rows)
	decErrs := []error{}
	if decErr != nil {
		decErrs = append(decErrs, decErr)
	}

	token := first.PageToken
	for token != "" && !limitReached(p.numResultLimit, len(rows)) {
		if err := c.throttle(ctx); err != nil {
			return rows, errors.Join(append(decErrs, err)...)
		}

		call := c.svc.Tabledata.List(c.projectID, dataset, table).Context(ctx).PageToken(token)
		if p.maxResults > 0 {
			call = call.MaxResults(p.maxResults)
		}
		res, err := call.Do()
		if err != nil {
			return rows, errors.Join(append(decErrs, fmt.Errorf("failed to list table data for %s.%s: %w", dataset, table, err))...)
		}

		pageRows, decErr := toRows(meta.Schema, res.Rows)
		if decErr != nil {
			decErrs = append(decErrs, decErr)
		}
		rows = append(rows, pageRows...)

		if len(res.Rows) == 0 {
			break
		}
		token = res.PageToken
	}

	if c.verboseMode {
		log.Log.Debugf(ctx, "read %d rows from table %s.%s", len(rows), dataset, table)
	}

	return rows, errors.Join(decErrs...)
}

func limitReached(limit, have int) bool {
	return limit > 0 && have >= limit
}

func fromTable(t *bigquery.Table) *Table {
	if t == nil || t.TableReference == nil {
		return nil
	}
	return &Table{
		Dataset:   NewDataset(t.TableReference.ProjectId, t.TableReference.DatasetId),
		TableID:   t.TableReference.TableId,
		Schemas:   fromTableSchema(t.Schema),
		CreatedAt: t.CreationTime,
		ExpiredAt: t.ExpirationTime,
	}
}
