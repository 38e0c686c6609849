package bq

// Project is one entry from the projects.list API.
type Project struct {
	FriendlyName string `json:"friendly_name"`
	ID           string `json:"id"`
	NumericID    string `json:"numeric_id"`
}

// Dataset identifies a dataset within a project.
type Dataset struct {
	Project string `json:"project"`
	Dataset string `json:"dataset"`
}

func NewDataset(project, dataset string) Dataset {
	return Dataset{Project: project, Dataset: dataset}
}

// Table identifies a table and carries schema metadata when a previous
// call has fetched it. CreatedAt/ExpiredAt are epoch milliseconds; zero
// means the list response did not include them.
type Table struct {
	Dataset   Dataset        `json:"dataset"`
	TableID   string         `json:"table_id"`
	Schemas   []*TableSchema `json:"schemas,omitempty"`
	CreatedAt int64          `json:"created_at,omitempty"`
	ExpiredAt int64          `json:"expired_at,omitempty"`
}

func NewTable(project, dataset, table string) *Table {
	return &Table{
		Dataset: NewDataset(project, dataset),
		TableID: table,
	}
}

// QueryResult is the outcome of Query: a dry run yields the inferred
// result schema, a real run yields decoded rows. The two shapes share
// nothing, so they are modeled as a closed union rather than a struct
// with optional fields.
type QueryResult interface {
	isQueryResult()
}

// QuerySchema is the dry-run variant of QueryResult.
type QuerySchema []*TableSchema

// QueryData is the executed-query variant of QueryResult.
type QueryData []Row

func (QuerySchema) isQueryResult() {}
func (QueryData) isQueryResult()   {}
