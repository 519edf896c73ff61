package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/ppiankov/provenance-radar/internal/model"
	"github.com/ppiankov/provenance-radar/internal/util"
)

// ErrUnavailable is returned when the generation service fails or its breaker is open
var ErrUnavailable = errors.New("generation unavailable")

// fallbackPrefix marks text returned when no provider is configured
const fallbackPrefix = "(generation not configured) "

// fallbackPromptChars is how much of the prompt the fallback echoes back
const fallbackPromptChars = 180

// briefItems caps the sentences and events included in an object brief
const briefItems = 8

const objectSystem = `You assist provenance researchers. Write a neutral brief of 120 to 180 words.
Summarize the chain of custody in plain language and mark any gaps in the timeline.
Point out possible red flags, such as confiscation, sales between 1933 and 1945 or exports after 1970, without drawing legal conclusions.
Finish with a "Next leads" list of at most three items.`

const textSystem = `Explain the text as a provenance note for curators.
Be precise and cautious. Highlight possible red flags tied to 1933-1945 and to export rules after 1970.`

// ObjectBrief is everything the object explanation prompt is built from
type ObjectBrief struct {
	Object    model.Object
	Sentences []model.Sentence
	Events    []model.Event
	Risk      *model.RiskScore
	Windows   []model.PolicyWindow
}

// Explainer produces research notes through a generation provider
type Explainer struct {
	provider Provider
	model    string
	breaker  *gobreaker.CircuitBreaker
	logger   *zap.Logger
}

// NewExplainer creates an explainer. A nil provider yields fallback text
// instead of errors, so explanation routes keep working without a key.
func NewExplainer(provider Provider, modelName string, logger *zap.Logger) *Explainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Explainer{
		provider: provider,
		model:    modelName,
		breaker:  util.NewBreaker(util.DefaultBreakerConfig("generation"), logger),
		logger:   logger,
	}
}

// IsEnabled returns whether a provider is configured
func (e *Explainer) IsEnabled() bool {
	return e.provider != nil
}

// Model returns the model name reported alongside explanations
func (e *Explainer) Model() string {
	switch {
	case e.provider == nil:
		return "none"
	case e.model != "":
		return e.model
	default:
		return e.provider.Name()
	}
}

// ExplainObject writes a research note for one object
func (e *Explainer) ExplainObject(ctx context.Context, brief ObjectBrief) (string, error) {
	return e.generate(ctx, BuildObjectPrompt(brief), objectSystem, knownRefs(brief))
}

// ExplainText explains a free-text provenance fragment
func (e *Explainer) ExplainText(ctx context.Context, text string) (string, error) {
	return e.generate(ctx, BuildTextPrompt(text), textSystem, nil)
}

func (e *Explainer) generate(ctx context.Context, prompt, system string, known map[string]bool) (string, error) {
	if e.provider == nil {
		return fallbackPrefix + truncateRunes(prompt, fallbackPromptChars), nil
	}

	result, err := e.breaker.Execute(func() (interface{}, error) {
		return e.provider.Generate(ctx, GenerateRequest{
			Prompt: prompt,
			System: system,
			Model:  e.model,
		})
	})
	if err != nil {
		e.logger.Warn("generation failed", zap.String("provider", e.provider.Name()), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp := result.(*GenerateResponse)
	for _, u := range resp.CitedURLs {
		if !known[u] {
			e.logger.Warn("explanation cites a url outside the record",
				zap.String("url", u), zap.String("model", resp.Model))
		}
	}
	e.logger.Debug("generation complete",
		zap.String("model", resp.Model), zap.Int("tokens", resp.TokensUsed))

	return resp.Text, nil
}

// BuildObjectPrompt renders the object brief: header, first sentences,
// first events, current risk and the policy windows to consider
func BuildObjectPrompt(brief ObjectBrief) string {
	obj := brief.Object
	var b strings.Builder

	title := obj.Title
	if title == "" {
		title = "Untitled"
	}
	fmt.Fprintf(&b, "Object: %s", title)
	if obj.Creator != "" {
		fmt.Fprintf(&b, ", %s", obj.Creator)
	}
	fmt.Fprintf(&b, " (source %s). Display date: %s.", obj.Source, orDefault(obj.DateDisplay, "n/a"))
	if brief.Risk != nil {
		fmt.Fprintf(&b, " Current risk score: %.2f (raw ratio %g).", brief.Risk.Normalized, brief.Risk.Raw)
	} else {
		b.WriteString(" Current risk score: not scored.")
	}
	b.WriteString("\n\nProvenance sentences:\n")
	for i, s := range brief.Sentences {
		if i == briefItems {
			break
		}
		fmt.Fprintf(&b, "- %s\n", s.Text)
	}

	fmt.Fprintf(&b, "\nStructured events (first %d):\n", briefItems)
	for i, ev := range brief.Events {
		if i == briefItems {
			break
		}
		fmt.Fprintf(&b, "- %s @ %s on %s (actor: %s)\n",
			ev.EventType, orDefault(ev.Place, "-"), orDefault(ev.DateFrom, "-"), orDefault(ev.Actor, "-"))
	}

	if len(brief.Windows) > 0 {
		b.WriteString("\nPolicy windows to consider:\n")
		for _, w := range brief.Windows {
			fmt.Fprintf(&b, "- %s: %s to %s\n", w.Label, w.From, orDefault(w.To, "present"))
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// BuildTextPrompt renders the prompt for a free-text explanation
func BuildTextPrompt(text string) string {
	return "Explain and contextualize this provenance fragment:\n\n" + strings.TrimSpace(text)
}

// knownRefs collects citations present in the record itself
func knownRefs(brief ObjectBrief) map[string]bool {
	known := make(map[string]bool)
	for _, ev := range brief.Events {
		if ev.SourceRef != "" {
			known[ev.SourceRef] = true
		}
	}
	for _, w := range brief.Windows {
		if w.Ref != "" {
			known[w.Ref] = true
		}
	}
	return known
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
