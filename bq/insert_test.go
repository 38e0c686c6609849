package bq

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventRow struct {
	ID   int64    `json:"id"`
	Tags []string `json:"tags"`
}

func (eventRow) BqSchema() []*TableSchema {
	return []*TableSchema{
		NewTableSchema("id", TypeInteger, ModeRequired),
		NewTableSchema("tags", TypeString, ModeRepeated),
	}
}

// insertHandler fails the insertAll call with a bad request until
// failures are exhausted, then succeeds. Table creation always
// succeeds.
type insertHandler struct {
	t           *testing.T
	failures    int
	insertCalls int
	lastBody    string
}

func (h *insertHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/datasets/logs/tables"):
		writeJSON(h.t, w, `{"tableReference": {"projectId": "test-project", "datasetId": "logs", "tableId": "events"}}`)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/tables/events/insertAll"):
		h.insertCalls++
		body, _ := io.ReadAll(r.Body)
		h.lastBody = string(body)
		if h.insertCalls <= h.failures {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error": {"code": 400, "message": "no such field", "errors": [{"reason": "invalid", "message": "no such field"}]}}`))
			return
		}
		writeJSON(h.t, w, `{"kind": "bigquery#tableDataInsertAllResponse"}`)
	default:
		h.t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestInsertAllRetriesBadRequestThenSucceeds(t *testing.T) {
	h := &insertHandler{t: t, failures: 5}
	c := newTestClient(t, h, WithInsertRetry(time.Millisecond, 5))

	data := []eventRow{{ID: 1, Tags: []string{"a"}}, {ID: 2, Tags: []string{"b"}}}
	p := NewInsertAllParam("logs", "events")

	err := InsertAll(context.Background(), c, data, p)
	require.NoError(t, err)
	assert.Equal(t, 6, h.insertCalls, "five failures then success is six attempts")
}

func TestInsertAllGivesUpAfterMaxRetries(t *testing.T) {
	h := &insertHandler{t: t, failures: 100}
	c := newTestClient(t, h, WithInsertRetry(time.Millisecond, 5))

	err := InsertAll(context.Background(), c, []eventRow{{ID: 1}}, NewInsertAllParam("logs", "events"))
	require.Error(t, err)
	assert.Equal(t, ClassBadRequest, Classify(err))
	assert.Equal(t, 6, h.insertCalls, "a seventh attempt must never happen")
}

func TestInsertAllDoesNotRetryOtherClasses(t *testing.T) {
	var insertCalls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/insertAll") {
			insertCalls++
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error": {"code": 403, "message": "forbidden"}}`))
			return
		}
		writeJSON(t, w, `{}`)
	})

	c := newTestClient(t, handler, WithInsertRetry(time.Millisecond, 5))

	err := InsertAll(context.Background(), c, []eventRow{{ID: 1}}, NewInsertAllParam("logs", "events"))
	require.Error(t, err)
	assert.Equal(t, ClassAuth, Classify(err))
	assert.Equal(t, 1, insertCalls)
}

func TestInsertAllStampsInsertIDsFromTraceID(t *testing.T) {
	h := &insertHandler{t: t}
	c := newTestClient(t, h)

	p := NewInsertAllParam("logs", "events")
	traceID := p.SetTraceID()
	require.NotEmpty(t, traceID)
	assert.Equal(t, traceID, p.TraceID())

	err := InsertAll(context.Background(), c, []eventRow{{ID: 1}, {ID: 2}}, p)
	require.NoError(t, err)
	assert.Contains(t, h.lastBody, traceID+"-0")
	assert.Contains(t, h.lastBody, traceID+"-1")
}

func TestInsertAllEmptyDataIsNoOp(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected for empty data, got %s %s", r.Method, r.URL.Path)
	})
	c := newTestClient(t, handler)

	err := InsertAll(context.Background(), c, []eventRow{}, NewInsertAllParam("logs", "events"))
	require.NoError(t, err)
}
