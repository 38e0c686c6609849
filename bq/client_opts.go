package bq

import (
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

// ########################################
// # Options
// ########################################

type clientOpt func(*Client) error

// WithVerbose enables debug logging of API traffic and retries.
func WithVerbose(v bool) clientOpt {
	return func(c *Client) error {
		c.verboseMode = v
		return nil
	}
}

// WithCredentialsJSON authenticates with a service account key in JSON
// form.
func WithCredentialsJSON(credentialsJSON string) clientOpt {
	return func(c *Client) error {
		c.credentialsJSON = credentialsJSON
		return nil
	}
}

// WithTokenSource authenticates with a caller-supplied token source.
func WithTokenSource(ts oauth2.TokenSource) clientOpt {
	return func(c *Client) error {
		c.tokenSource = ts
		return nil
	}
}

// WithClientOptions passes raw options through to the generated
// service, e.g. option.WithEndpoint for tests.
func WithClientOptions(opts ...option.ClientOption) clientOpt {
	return func(c *Client) error {
		c.clientOptions = append(c.clientOptions, opts...)
		return nil
	}
}

// WithRateLimit throttles API calls client-side to rps requests per
// second with the given burst.
func WithRateLimit(rps float64, burst int) clientOpt {
	return func(c *Client) error {
		if rps <= 0 || burst <= 0 {
			return fmt.Errorf("rate limit requires positive rps and burst")
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		return nil
	}
}

// WithInsertRetry tunes the streaming-insert retry loop: base is the
// backoff unit (sleep grows as base times the square of the retry
// count) and maxRetries bounds the retries after the first attempt.
func WithInsertRetry(base time.Duration, maxRetries int) clientOpt {
	return func(c *Client) error {
		if base <= 0 || maxRetries < 0 {
			return fmt.Errorf("insert retry requires positive base and non-negative maxRetries")
		}
		c.insertRetryBase = base
		c.insertRetryMax = maxRetries
		return nil
	}
}

// WithJobPollInterval sets how often WaitJobComplete polls job status.
func WithJobPollInterval(d time.Duration) clientOpt {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("job poll interval must be positive")
		}
		c.jobPollInterval = d
		return nil
	}
}
