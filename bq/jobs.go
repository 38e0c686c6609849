package bq

import (
	"context"
	"fmt"

	bigquery "google.golang.org/api/bigquery/v2"

	"github.com/n-h-n/go-bq/log"
)

// JobState is the lifecycle state of a BigQuery job.
type JobState string

const (
	JobPending JobState = "PENDING"
	JobRunning JobState = "RUNNING"
	JobDone    JobState = "DONE"
	JobUnknown JobState = "UNKNOWN"
)

func parseJobState(s string) JobState {
	switch s {
	case "PENDING":
		return JobPending
	case "RUNNING":
		return JobRunning
	case "DONE":
		return JobDone
	default:
		return JobUnknown
	}
}

// JobResult is the observable outcome of a job. ErrorMessage and
// ErrorReason are empty while the job has not failed.
type JobResult struct {
	JobID        string   `json:"job_id"`
	SelfLink     string   `json:"self_link"`
	State        JobState `json:"state"`
	ErrorMessage string   `json:"error_message,omitempty"`
	ErrorReason  string   `json:"error_reason,omitempty"`
}

// Failed reports whether the job finished with an error result.
func (r *JobResult) Failed() bool {
	return r.ErrorMessage != "" || r.ErrorReason != ""
}

func fromJob(j *bigquery.Job) *JobResult {
	r := &JobResult{SelfLink: j.SelfLink, State: JobUnknown}
	if j.JobReference != nil {
		r.JobID = j.JobReference.JobId
	}
	if j.Status != nil {
		r.State = parseJobState(j.Status.State)
		if j.Status.ErrorResult != nil {
			r.ErrorMessage = j.Status.ErrorResult.Message
			r.ErrorReason = j.Status.ErrorResult.Reason
		}
	}
	return r
}

// QueryToTable starts a query job that writes its result into the
// destination table of p. The job is returned as soon as the API
// accepts it; use WaitJobComplete to block until it finishes.
func (c *Client) QueryToTable(ctx context.Context, p *QueryToTableParam) (*JobResult, error) {
	if p == nil {
		return nil, fmt.Errorf("query to table param is required")
	}

	if err := c.throttle(ctx); err != nil {
		return nil, err
	}

	if c.verboseMode {
		log.Log.Debugf(ctx, "starting query job writing to %s.%s.%s", p.dstProject, p.dstDataset, p.dstTable)
	}

	job := &bigquery.Job{Configuration: p.toJobConfiguration()}
	res, err := c.svc.Jobs.Insert(c.projectID, job).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to insert query job: %w", err)
	}

	return fromJob(res), nil
}

// GetJob fetches the current state of a job.
func (c *Client) GetJob(ctx context.Context, jobID string) (*JobResult, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}

	res, err := c.svc.Jobs.Get(c.projectID, jobID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}

	return fromJob(res), nil
}

// WaitJobComplete polls the job until it reaches DONE or ctx is
// cancelled. A DONE job that carries an error result is still returned
// without error; check JobResult.Failed.
func (c *Client) WaitJobComplete(ctx context.Context, jobID string) (*JobResult, error) {
	for {
		r, err := c.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}

		if r.State == JobDone {
			if c.verboseMode {
				log.Log.Debugf(ctx, "job %s completed, failed=%v", jobID, r.Failed())
			}
			return r, nil
		}

		if c.verboseMode {
			log.Log.Debugf(ctx, "job %s state %s, polling again in %s", jobID, r.State, c.jobPollInterval)
		}

		if err := sleep(ctx, c.jobPollInterval); err != nil {
			return r, err
		}
	}
}
