// Package workflow schedules the pipeline stages as a Temporal workflow.
package workflow

import (
	"context"
	"math/rand/v2"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/sells-group/leadgen-cli/internal/pipeline"
)

// Name is the registered workflow type.
const Name = "LeadPipeline"

// Activity retry policy: three attempts five minutes apart.
const (
	activityTimeout  = 2 * time.Hour
	retryInterval    = 5 * time.Minute
	maxRetryAttempts = 3
)

// Params configures one workflow execution.
type Params struct {
	// StartDelayMax spreads scheduled runs: the workflow first sleeps a
	// random duration in [0, StartDelayMax).
	StartDelayMax time.Duration `json:"start_delay_max"`
}

// Stages is the stage runner the activities delegate to.
type Stages interface {
	Scrape(ctx context.Context) (*pipeline.StageResult, error)
	EnrichPosts(ctx context.Context) (*pipeline.StageResult, error)
	EnrichContacts(ctx context.Context) (*pipeline.StageResult, error)
	SyncCRM(ctx context.Context) (*pipeline.StageResult, error)
}

// Migrator creates the schema.
type Migrator interface {
	Migrate(ctx context.Context) error
}

// Activities exposes the stages as Temporal activities.
type Activities struct {
	Schema Migrator
	Stages Stages
}

// EnsureSchema creates missing tables and columns.
func (a *Activities) EnsureSchema(ctx context.Context) error {
	return a.Schema.Migrate(ctx)
}

// Scrape runs the scrape stage.
func (a *Activities) Scrape(ctx context.Context) (*pipeline.StageResult, error) {
	return a.Stages.Scrape(ctx)
}

// EnrichPosts runs the post enrichment stage.
func (a *Activities) EnrichPosts(ctx context.Context) (*pipeline.StageResult, error) {
	return a.Stages.EnrichPosts(ctx)
}

// EnrichContacts runs the contact enrichment stage.
func (a *Activities) EnrichContacts(ctx context.Context) (*pipeline.StageResult, error) {
	return a.Stages.EnrichContacts(ctx)
}

// SyncCRM runs the CRM sync stage.
func (a *Activities) SyncCRM(ctx context.Context) (*pipeline.StageResult, error) {
	return a.Stages.SyncCRM(ctx)
}

// Registry is the part of a worker (or test environment) that registers
// workflows and activities.
type Registry interface {
	RegisterWorkflowWithOptions(w any, options workflow.RegisterOptions)
	RegisterActivity(a any)
}

// Register adds the workflow and activities to a worker.
func Register(r Registry, acts *Activities) {
	r.RegisterWorkflowWithOptions(LeadPipeline, workflow.RegisterOptions{Name: Name})
	r.RegisterActivity(acts)
}

// LeadPipeline runs EnsureSchema, Scrape, EnrichPosts, EnrichContacts and
// SyncCRM in order. A stage that still fails after its retries ends the
// workflow; later stages do not run.
func LeadPipeline(ctx workflow.Context, p Params) ([]pipeline.StageResult, error) {
	log := workflow.GetLogger(ctx)

	if p.StartDelayMax > 0 {
		var delay time.Duration
		encoded := workflow.SideEffect(ctx, func(workflow.Context) any {
			return rand.N(p.StartDelayMax)
		})
		if err := encoded.Get(&delay); err != nil {
			return nil, err
		}
		log.Info("start delay", "delay", delay)
		if err := workflow.Sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: activityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    retryInterval,
			BackoffCoefficient: 1.0,
			MaximumInterval:    retryInterval,
			MaximumAttempts:    maxRetryAttempts,
		},
	})

	var a *Activities
	if err := workflow.ExecuteActivity(ctx, a.EnsureSchema).Get(ctx, nil); err != nil {
		return nil, err
	}

	stages := []any{a.Scrape, a.EnrichPosts, a.EnrichContacts, a.SyncCRM}
	results := make([]pipeline.StageResult, 0, len(stages))
	for _, stage := range stages {
		var res pipeline.StageResult
		if err := workflow.ExecuteActivity(ctx, stage).Get(ctx, &res); err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}
