// Package classify assigns contacts to a closed set of marketing audiences
// using an LLM, coercing anything unexpected to a fixed fallback pair.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadgen-cli/pkg/anthropic"
)

const systemPrompt = "You are an expert at classifying professionals into target audience categories for B2B marketing. Respond with ONLY a JSON object."

const temperature = 0.1

// Input is what the classifier knows about a contact. Name and Headline are
// optional.
type Input struct {
	Company  string
	Title    string
	Name     string
	Headline string
}

// Classifier calls the LLM and applies the taxonomy.
type Classifier struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	taxonomy  *Taxonomy
	limiter   *rate.Limiter
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithRateLimit caps classifier calls per second.
func WithRateLimit(rps float64) Option {
	return func(c *Classifier) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithTaxonomy replaces the embedded taxonomy.
func WithTaxonomy(t *Taxonomy) Option {
	return func(c *Classifier) {
		c.taxonomy = t
	}
}

// New creates a Classifier using the embedded taxonomy unless overridden.
func New(client anthropic.Client, model string, maxTokens int64, opts ...Option) (*Classifier, error) {
	c := &Classifier{client: client, model: model, maxTokens: maxTokens}
	for _, opt := range opts {
		opt(c)
	}
	if c.taxonomy == nil {
		t, err := DefaultTaxonomy()
		if err != nil {
			return nil, err
		}
		c.taxonomy = t
	}
	if c.maxTokens <= 0 {
		c.maxTokens = 256
	}
	return c, nil
}

// Fallback returns the pair used when classification fails.
func (c *Classifier) Fallback() Classification {
	return c.taxonomy.Fallback
}

// Classify returns a classification inside the closed set. It never fails:
// a failed call, an unparseable answer or an out-of-set answer all degrade
// to the fallback (or the fallback position), and coerced reports it.
func (c *Classifier) Classify(ctx context.Context, in Input) (result Classification, coerced bool) {
	log := zap.L().With(zap.String("company", in.Company), zap.String("title", in.Title))

	raw, err := c.ask(ctx, in)
	if err != nil {
		log.Warn("classify: call failed, using fallback", zap.Error(err))
		return c.taxonomy.Fallback, true
	}

	result, ok := c.taxonomy.Coerce(raw)
	if !ok {
		log.Warn("classify: answer outside taxonomy, coerced",
			zap.String("raw_audience", raw.Audience),
			zap.String("raw_position", raw.Position),
			zap.String("audience", result.Audience),
			zap.String("position", result.Position),
		)
		return result, true
	}
	log.Debug("classify: classified", zap.String("audience", result.Audience), zap.String("position", result.Position))
	return result, false
}

func (c *Classifier) ask(ctx context.Context, in Input) (Classification, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Classification{}, eris.Wrap(err, "classify: rate limit")
		}
	}

	temp := temperature
	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		System:      systemPrompt,
		Messages:    []anthropic.Message{{Role: "user", Content: c.prompt(in)}},
		Temperature: &temp,
	})
	if err != nil {
		return Classification{}, err
	}
	resp.Usage.LogCost(c.model, "classify")
	return parseAnswer(resp.Text())
}

// parseAnswer extracts the JSON object from the model's reply, tolerating
// code fences and surrounding prose.
func parseAnswer(text string) (Classification, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return Classification{}, eris.Errorf("classify: no JSON object in answer %q", text)
	}
	var out Classification
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return Classification{}, eris.Wrap(err, "classify: decode answer")
	}
	return out, nil
}

func (c *Classifier) prompt(in Input) string {
	var b strings.Builder
	b.WriteString("Based on the following professional information, classify this person into one of the audience categories and a position within it:\n\n")
	fmt.Fprintf(&b, "Company: %s\nTitle: %s\n", in.Company, in.Title)
	if in.Name != "" {
		fmt.Fprintf(&b, "Name: %s\n", in.Name)
	}
	if in.Headline != "" {
		fmt.Fprintf(&b, "Headline: %s\n", in.Headline)
	}

	b.WriteString("\nTARGET AUDIENCE CATEGORIES (positions ordered by importance within each group; groups are not ordered):\n")
	for i, a := range c.taxonomy.Audiences {
		fmt.Fprintf(&b, "\nGroup %d: %s\n", i+1, a.Name)
		for _, p := range a.Positions {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}

	fb := c.taxonomy.Fallback
	fmt.Fprintf(&b, "\nFirst pick the group, then the position within it, using the position text exactly as listed. "+
		"If the person does not clearly fit any group, answer %q for both.\n", fb.Audience)
	b.WriteString("\nRespond with ONLY a JSON object in this exact format:\n{\"audience\": \"GROUP_NAME\", \"position\": \"POSITION_NAME\"}\n")
	return b.String()
}
