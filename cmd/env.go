package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/classify"
	"github.com/sells-group/leadgen-cli/internal/crm"
	"github.com/sells-group/leadgen-cli/internal/enrich"
	"github.com/sells-group/leadgen-cli/internal/metrics"
	"github.com/sells-group/leadgen-cli/internal/pipeline"
	"github.com/sells-group/leadgen-cli/internal/scrape"
	"github.com/sells-group/leadgen-cli/internal/store"
	anthropicpkg "github.com/sells-group/leadgen-cli/pkg/anthropic"
	"github.com/sells-group/leadgen-cli/pkg/apify"
	"github.com/sells-group/leadgen-cli/pkg/hubspot"
	sfpkg "github.com/sells-group/leadgen-cli/pkg/salesforce"
)

// need selects the dependencies a command builds. Only the credentials of
// the selected dependencies are validated.
type need struct {
	scraper  bool
	profiles bool
	classify bool
	crm      bool
}

var needAll = need{scraper: true, profiles: true, classify: true, crm: true}

// stageEnv holds the store and the runner for one command.
type stageEnv struct {
	Store  *store.PostgresStore
	Runner *pipeline.Runner
}

// Close releases the database pool.
func (e *stageEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (*store.PostgresStore, error) {
	if err := cfg.ValidateStore(); err != nil {
		return nil, err
	}
	return store.NewPostgres(ctx, cfg.Store.DSN(), &store.PoolConfig{MaxConns: cfg.Store.MaxConns})
}

func initScraper() *scrape.Scraper {
	client := apify.NewClient(cfg.Apify.Key,
		apify.WithBaseURL(cfg.Apify.BaseURL),
		apify.WithRateLimit(cfg.Apify.RateLimit),
	)
	return scrape.New(client, scrape.Config{
		ReactionsActor: cfg.Apify.ReactionsActor,
		ProfileActor:   cfg.Apify.ProfileActor,
		MediaActor:     cfg.Apify.MediaActor,
		PageSize:       cfg.Apify.PageSize,
		MaxPages:       cfg.Apify.MaxPages,
		RunTimeout:     cfg.Apify.RunTimeout,
	})
}

func initClassifier() (*classify.Classifier, error) {
	client := anthropicpkg.NewClient(cfg.Anthropic.Key)
	return classify.New(client, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens,
		classify.WithRateLimit(cfg.Anthropic.RateLimit),
	)
}

func initCRM() (crm.Client, error) {
	switch cfg.CRM.Backend {
	case "hubspot":
		hs := hubspot.NewClient(cfg.HubSpot.Key,
			hubspot.WithBaseURL(cfg.HubSpot.BaseURL),
			hubspot.WithRateLimit(cfg.HubSpot.RateLimit),
		)
		return crm.NewHubSpot(hs, cfg.HubSpot.ListID), nil
	case "salesforce":
		sf, err := sfpkg.Connect(sfpkg.JWTCreds{
			LoginURL: cfg.Salesforce.LoginURL,
			Username: cfg.Salesforce.Username,
			ClientID: cfg.Salesforce.ClientID,
			KeyPath:  cfg.Salesforce.KeyPath,
		}, sfpkg.WithRateLimit(cfg.Salesforce.RateLimit))
		if err != nil {
			return nil, err
		}
		return crm.NewSalesforce(sf, cfg.Salesforce.CampaignID), nil
	default:
		return nil, eris.Errorf("unknown crm backend %q", cfg.CRM.Backend)
	}
}

// initStages validates credentials, connects the store and builds the
// runner. Callers should defer env.Close().
func initStages(ctx context.Context, n need) (*stageEnv, error) {
	checks := []func() error{}
	if n.scraper || n.profiles {
		checks = append(checks, cfg.ValidateApify)
	}
	if n.classify {
		checks = append(checks, cfg.ValidateAnthropic)
	}
	if n.crm {
		checks = append(checks, cfg.ValidateCRM)
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return nil, err
		}
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &stageEnv{Store: st}

	var deps pipeline.Deps
	var enrichDeps enrich.Deps
	if n.scraper || n.profiles {
		sc := initScraper()
		deps.Scraper = sc
		enrichDeps.Profiles = sc
		enrichDeps.Media = sc
	}
	if n.classify {
		cl, err := initClassifier()
		if err != nil {
			env.Close()
			return nil, eris.Wrap(err, "init classifier")
		}
		enrichDeps.Classifier = cl
	}
	if n.scraper || n.profiles || n.classify {
		deps.Enricher = enrich.New(st, enrichDeps, enrich.Limits{
			CompanyTitle: cfg.Pipeline.CompanyTitleLimit,
			Audience:     cfg.Pipeline.AudienceLimit,
			Posts:        cfg.Pipeline.PostEnrichLimit,
			CommitEvery:  cfg.Pipeline.CommitEvery,
		})
	}
	if n.crm {
		client, err := initCRM()
		if err != nil {
			env.Close()
			return nil, eris.Wrap(err, "init crm")
		}
		deps.Syncer = crm.NewSyncer(client, st,
			crm.WithAddToList(cfg.CRM.AddToList),
			crm.WithCommitEvery(cfg.Pipeline.CommitEvery),
		)
	}

	env.Runner = pipeline.New(st, deps, pipeline.Config{
		MaxScrapes: cfg.Pipeline.MaxScrapes,
		Cooldown:   cfg.Pipeline.Cooldown,
		BatchSize:  cfg.Pipeline.ScrapeBatchSize,
		PostDelay:  pipeline.Delay{Min: cfg.Pipeline.PostDelayMin, Max: cfg.Pipeline.PostDelayMax},
		ErrorDelay: pipeline.Delay{Min: cfg.Pipeline.ErrorDelayMin, Max: cfg.Pipeline.ErrorDelayMax},
	})
	return env, nil
}

// pushMetrics sends the collected counters to the Pushgateway, if configured.
func pushMetrics(ctx context.Context) {
	if err := metrics.Push(ctx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
		zap.L().Warn("metrics push failed", zap.Error(err))
	}
}
