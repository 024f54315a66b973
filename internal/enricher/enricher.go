// Package enricher calls an LLM to produce an article summary plus a
// set of claims ("signals") grounded in specific extracted sections,
// then validates the response structurally and semantically before it
// is trusted.
package enricher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/lueurxax/telegram-digest-bot/internal/domain"
)

// PromptVersion is recorded in EnrichmentMeta on every successful call,
// so a later prompt revision can be told apart from this one.
const PromptVersion = "v1"

// Output bounds, overridable via Config.
const (
	DefaultMaxSummaryChars   = 900
	DefaultMaxSignals        = 8
	DefaultMaxSignalChars    = 280
	DefaultMaxSnippetChars   = 200
	DefaultSectionPromptChars = 2000
)

// Sentinel validation errors, checked with errors.Is at call sites.
var (
	ErrSummaryTooLong       = errors.New("summary too long")
	ErrTooManySignals       = errors.New("too many signals")
	ErrSignalFieldTooLong   = errors.New("signal field too long")
	ErrSnippetTooLong       = errors.New("supporting_snippet too long")
	ErrInvalidSectionID     = errors.New("invalid section_id")
	ErrUngroundedSnippet    = errors.New("supporting_snippet not found in section content")
	ErrCircuitBreakerOpen   = errors.New("enrichment circuit breaker is open")
	ErrEmptyResponse        = errors.New("empty response from LLM")
	ErrMissingAPIKey        = errors.New("OPENAI_API_KEY is required for enrichment")
)

const (
	circuitBreakerThreshold = 5
	circuitBreakerTimeout   = 1 * time.Minute
)

// Config controls prompt limits and the rate limiter; the circuit
// breaker uses the fixed threshold and timeout above.
type Config struct {
	Model               string
	APIKey              string
	BaseURL             string
	MaxSummaryChars     int
	MaxSignals          int
	MaxSignalChars      int
	MaxSnippetChars     int
	SectionPromptChars  int
	RequestsPerSecond   float64
}

func withDefaults(cfg Config) Config {
	if cfg.MaxSummaryChars <= 0 {
		cfg.MaxSummaryChars = DefaultMaxSummaryChars
	}

	if cfg.MaxSignals <= 0 {
		cfg.MaxSignals = DefaultMaxSignals
	}

	if cfg.MaxSignalChars <= 0 {
		cfg.MaxSignalChars = DefaultMaxSignalChars
	}

	if cfg.MaxSnippetChars <= 0 {
		cfg.MaxSnippetChars = DefaultMaxSnippetChars
	}

	if cfg.SectionPromptChars <= 0 {
		cfg.SectionPromptChars = DefaultSectionPromptChars
	}

	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}

	return cfg
}

// Result is the validated enrichment output for one article.
type Result struct {
	Summary string
	Signals []domain.Signal
	Topics  []string
}

// Meta records provenance for the call that produced a Result.
type Meta struct {
	Model         string
	PromptVersion string
	TokenUsage    map[string]any
}

// Enricher wraps a go-openai client with a circuit breaker, grounded
// on the same pattern the teacher's LLM client uses.
type Enricher struct {
	cfg    Config
	client *openai.Client
	limiter *rate.Limiter

	mu                   sync.Mutex
	consecutiveFailures  int
	circuitOpenUntil     time.Time
}

// New builds an Enricher. baseURL may be empty to use the public
// OpenAI API; set it to point at a compatible gateway.
func New(cfg Config) *Enricher {
	cfg = withDefaults(cfg)

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Enricher{
		cfg:     cfg,
		client:  openai.NewClientWithConfig(clientCfg),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 5),
	}
}

// section is the wire shape sent to the model for one section.
type section struct {
	SectionID string `json:"section_id"`
	Content   string `json:"content"`
}

type instructions struct {
	SummaryMaxChars           int `json:"summary_max_chars"`
	SignalsMax                int `json:"signals_max"`
	SignalFieldMaxChars       int `json:"signal_field_max_chars"`
	SupportingSnippetMaxChars int `json:"supporting_snippet_max_chars"`
}

type promptPayload struct {
	Title        string       `json:"title"`
	URL          string       `json:"url"`
	Sections     []section    `json:"sections"`
	Instructions instructions `json:"instructions"`
}

// citePointer is the section a signal is grounded in.
type citePointer struct {
	SectionID string `json:"section_id"`
}

type enrichmentSignal struct {
	Claim             string      `json:"claim"`
	Why               string      `json:"why"`
	Tradeoff          string      `json:"tradeoff,omitempty"`
	SupportingSnippet string      `json:"supporting_snippet"`
	Cite              citePointer `json:"cite"`
}

type enrichmentOutput struct {
	Summary                string             `json:"summary"`
	Signals                []enrichmentSignal `json:"signals"`
	Topics                 []string           `json:"topics"`
	FreshnessHalfLifeDays  *int               `json:"freshness_half_life_days"`
}

// Enrich builds the prompt, calls the LLM, validates the response, and
// returns the grounded result. sections must be the article's current
// extraction; supporting_snippet grounding is checked against their
// content verbatim.
func (e *Enricher) Enrich(ctx context.Context, title, url string, sections []domain.Section) (*Result, *Meta, error) {
	if e.cfg.APIKey == "" {
		return nil, nil, ErrMissingAPIKey
	}

	if err := e.checkCircuit(); err != nil {
		return nil, nil, err
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}

	prompt := buildPrompt(title, url, sections, e.cfg)

	raw, usage, err := e.call(ctx, prompt)
	if err != nil {
		e.recordFailure()
		return nil, nil, err
	}

	var parsed enrichmentOutput

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&parsed); err != nil {
		e.recordFailure()
		return nil, nil, fmt.Errorf("invalid enrichment schema: %w", err)
	}

	if err := validate(parsed, sections, e.cfg); err != nil {
		e.recordFailure()
		return nil, nil, err
	}

	e.recordSuccess()

	result := &Result{
		Summary: trim(parsed.Summary, e.cfg.MaxSummaryChars),
		Topics:  parsed.Topics,
	}

	for _, s := range parsed.Signals {
		result.Signals = append(result.Signals, domain.Signal{
			Kind:              "claim",
			Text:              s.Claim,
			Why:               s.Why,
			Tradeoff:          s.Tradeoff,
			SectionID:         s.Cite.SectionID,
			SupportingSnippet: s.SupportingSnippet,
		})
	}

	meta := &Meta{
		Model:         e.cfg.Model,
		PromptVersion: PromptVersion,
		TokenUsage:    usage,
	}

	return result, meta, nil
}

func (e *Enricher) call(ctx context.Context, prompt string) (string, map[string]any, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.cfg.Model,
		Temperature: 0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "Return strict JSON only. No markdown. Follow the provided instructions.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return "", nil, fmt.Errorf("llm request: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", nil, ErrEmptyResponse
	}

	usage := map[string]any{
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
		"total_tokens":      resp.Usage.TotalTokens,
	}

	return resp.Choices[0].Message.Content, usage, nil
}

func buildPrompt(title, url string, sections []domain.Section, cfg Config) string {
	blocks := make([]section, 0, len(sections))

	for _, s := range sections {
		blocks = append(blocks, section{
			SectionID: s.SectionID,
			Content:   trim(s.Content, cfg.SectionPromptChars),
		})
	}

	payload := promptPayload{
		Title:    title,
		URL:      url,
		Sections: blocks,
		Instructions: instructions{
			SummaryMaxChars:           cfg.MaxSummaryChars,
			SignalsMax:                cfg.MaxSignals,
			SignalFieldMaxChars:       cfg.MaxSignalChars,
			SupportingSnippetMaxChars: cfg.MaxSnippetChars,
		},
	}

	encoded, _ := json.Marshal(payload)

	return string(encoded)
}

func validate(output enrichmentOutput, sections []domain.Section, cfg Config) error {
	if len(output.Summary) > cfg.MaxSummaryChars {
		return ErrSummaryTooLong
	}

	if len(output.Signals) > cfg.MaxSignals {
		return ErrTooManySignals
	}

	sectionContent := make(map[string]string, len(sections))
	for _, s := range sections {
		sectionContent[s.SectionID] = s.Content
	}

	for _, signal := range output.Signals {
		if len(signal.Claim) > cfg.MaxSignalChars || len(signal.Why) > cfg.MaxSignalChars {
			return ErrSignalFieldTooLong
		}

		if signal.Tradeoff != "" && len(signal.Tradeoff) > cfg.MaxSignalChars {
			return ErrSignalFieldTooLong
		}

		if len(signal.SupportingSnippet) > cfg.MaxSnippetChars {
			return ErrSnippetTooLong
		}

		content, ok := sectionContent[signal.Cite.SectionID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrInvalidSectionID, signal.Cite.SectionID)
		}

		if !strings.Contains(content, signal.SupportingSnippet) {
			return ErrUngroundedSnippet
		}
	}

	return nil
}

func trim(text string, maxChars int) string {
	if maxChars <= 0 {
		return ""
	}

	if len(text) <= maxChars {
		return text
	}

	if maxChars <= 3 {
		return text[:maxChars]
	}

	return strings.TrimRight(text[:maxChars-3], " \t\r\n") + "..."
}

func (e *Enricher) checkCircuit() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if time.Now().Before(e.circuitOpenUntil) {
		return fmt.Errorf("%w until %v", ErrCircuitBreakerOpen, e.circuitOpenUntil)
	}

	return nil
}

func (e *Enricher) recordSuccess() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.consecutiveFailures = 0
}

func (e *Enricher) recordFailure() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.consecutiveFailures++
	if e.consecutiveFailures >= circuitBreakerThreshold {
		e.circuitOpenUntil = time.Now().Add(circuitBreakerTimeout)
	}
}
