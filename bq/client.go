package bq

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	bigquery "google.golang.org/api/bigquery/v2"
	"google.golang.org/api/option"

	"github.com/n-h-n/go-bq/log"
)

// Client wraps the BigQuery REST API for one project. All operations
// decode wire payloads into the typed value model; the raw service is
// reachable via GetService for anything not covered.
type Client struct {
	svc             *bigquery.Service
	projectID       string
	credentialsJSON string
	tokenSource     oauth2.TokenSource
	clientOptions   []option.ClientOption
	verboseMode     bool
	limiter         *rate.Limiter
	insertRetryBase time.Duration
	insertRetryMax  int
	jobPollInterval time.Duration
}

func NewClient(
	ctx context.Context,
	projectID string,
	opts ...clientOpt,
) (*Client, error) {
	c := Client{
		projectID:       projectID,
		verboseMode:     false,
		insertRetryBase: 100 * time.Millisecond,
		insertRetryMax:  5,
		jobPollInterval: time.Second,
	}

	for _, opt := range opts {
		err := opt(&c)
		if err != nil {
			return nil, err
		}
	}

	if c.projectID == "" {
		return nil, fmt.Errorf("project ID is required")
	}

	var clientOptions []option.ClientOption

	// Handle authentication
	if c.credentialsJSON != "" {
		creds, err := google.CredentialsFromJSON(ctx, []byte(c.credentialsJSON), bigquery.BigqueryScope)
		if err != nil {
			return nil, fmt.Errorf("failed to create credentials from JSON: %w", err)
		}
		clientOptions = append(clientOptions, option.WithCredentials(creds))
	} else if c.tokenSource != nil {
		clientOptions = append(clientOptions, option.WithTokenSource(c.tokenSource))
	} else {
		// Use default credentials (Application Default Credentials)
		if c.verboseMode {
			log.Log.Debugf(ctx, "using default credentials for BigQuery authentication")
		}
	}

	clientOptions = append(clientOptions, c.clientOptions...)

	svc, err := bigquery.NewService(ctx, clientOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create BigQuery service: %w", err)
	}

	c.svc = svc

	if c.verboseMode {
		log.Log.Debugf(ctx, "successfully connected to BigQuery project: %s", c.projectID)
	}

	return &c, nil
}

// GetService returns the underlying generated REST service.
func (c *Client) GetService() *bigquery.Service {
	return c.svc
}

// GetProjectID returns the project ID
func (c *Client) GetProjectID() string {
	return c.projectID
}

// IsVerbose returns whether verbose mode is enabled
func (c *Client) IsVerbose() bool {
	return c.verboseMode
}

// throttle blocks until the client-side rate limiter admits the next
// API call. No-op when no limiter is configured.
func (c *Client) throttle(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}
	return nil
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
