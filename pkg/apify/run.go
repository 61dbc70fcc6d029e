package apify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultPollInitial = 2 * time.Second
	defaultPollCap     = 15 * time.Second
	defaultPollTimeout = 10 * time.Minute
	defaultPageSize    = 1000
	// waitForFinish long-poll per status request, in seconds.
	defaultWaitSecs = 30
)

// PollOption configures polling behavior.
type PollOption func(*pollConfig)

type pollConfig struct {
	initial  time.Duration
	cap      time.Duration
	timeout  time.Duration
	waitSecs int
	pageSize int
}

func defaultPollConfig() pollConfig {
	return pollConfig{
		initial:  defaultPollInitial,
		cap:      defaultPollCap,
		timeout:  defaultPollTimeout,
		waitSecs: defaultWaitSecs,
		pageSize: defaultPageSize,
	}
}

// WithPollInterval overrides the initial poll interval.
func WithPollInterval(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.initial = d
	}
}

// WithPollCap overrides the maximum poll interval.
func WithPollCap(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.cap = d
	}
}

// WithPollTimeout overrides the default timeout (applied only if the parent
// context has no deadline).
func WithPollTimeout(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.timeout = d
	}
}

// WithWaitForFinish sets the server-side long-poll per status request.
// Zero disables it.
func WithWaitForFinish(secs int) PollOption {
	return func(c *pollConfig) {
		c.waitSecs = secs
	}
}

// WithPageSize sets the dataset page size used by CallActor.
func WithPageSize(n int) PollOption {
	return func(c *pollConfig) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// RunError reports a run that finished without succeeding.
type RunError struct {
	RunID   string
	Status  string
	Message string
}

func (e *RunError) Error() string {
	return "apify: run " + e.RunID + " finished with status " + e.Status + ": " + e.Message
}

// WaitRun polls a run until it reaches a terminal status or the context
// expires. Uses exponential backoff between polls, capped.
func WaitRun(ctx context.Context, client Client, runID string, opts ...PollOption) (*Run, error) {
	cfg := defaultPollConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	interval := cfg.initial
	for {
		run, err := client.GetRun(ctx, runID, cfg.waitSecs)
		if err != nil {
			return nil, eris.Wrapf(err, "apify: poll run %s", runID)
		}

		if run.Finished() {
			if run.Status != StatusSucceeded {
				return run, &RunError{RunID: runID, Status: run.Status, Message: run.StatusMessage}
			}
			return run, nil
		}

		select {
		case <-ctx.Done():
			return nil, eris.Wrapf(ctx.Err(), "apify: poll run %s timed out", runID)
		case <-time.After(interval):
		}

		interval *= 2
		if interval > cfg.cap {
			interval = cfg.cap
		}
	}
}

// AllItems reads every item of a dataset, page by page.
func AllItems(ctx context.Context, client Client, datasetID string, pageSize int) ([]json.RawMessage, error) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	var all []json.RawMessage
	for offset := 0; ; offset += pageSize {
		page, err := client.DatasetItems(ctx, datasetID, offset, pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

// CallActor starts an actor, waits for the run to succeed and returns the
// finished run with its dataset items.
func CallActor(ctx context.Context, client Client, actorID string, input any, opts ...PollOption) (*Run, []json.RawMessage, error) {
	cfg := defaultPollConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	started, err := client.StartRun(ctx, actorID, input)
	if err != nil {
		return nil, nil, err
	}

	run, err := WaitRun(ctx, client, started.ID, opts...)
	if err != nil {
		return run, nil, err
	}

	datasetID := run.DefaultDatasetID
	if datasetID == "" {
		datasetID = started.DefaultDatasetID
	}
	if datasetID == "" {
		return run, nil, eris.Errorf("apify: run %s has no dataset", run.ID)
	}

	items, err := AllItems(ctx, client, datasetID, cfg.pageSize)
	if err != nil {
		return run, nil, err
	}
	return run, items, nil
}
