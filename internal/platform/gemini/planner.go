package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cardfeed/internal/config"
	"github.com/phrazzld/cardfeed/internal/domain"
	"github.com/phrazzld/cardfeed/internal/redact"
	"google.golang.org/genai"
)

const promptTemplate = `You help a knowledge worker decide what to do next.
Rank the tasks below from most to least worth doing now.
For each task give a one sentence rationale, an urgency score and an impact
score, both between 0 and 1.

Answer with JSON only, in the form:
{"tasks":[{"title":"...","rationale":"...","urgency":0.0,"impact":0.0}]}
Use each title exactly as written.

Tasks:
{{range .Tasks}}- {{.}}
{{end}}`

const unrankedRationale = "Not ranked by planner"

// contentGenerator is the slice of the genai API the planner uses.
// *genai.Models satisfies it.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Planner ranks task titles with a Gemini model.
type Planner struct {
	logger     *slog.Logger
	models     contentGenerator
	model      string
	prompt     *template.Template
	maxRetries int
	baseDelay  time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewPlanner creates a Planner backed by the Gemini API.
func NewPlanner(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Planner, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", ErrInvalidConfig, err)
	}
	return newPlanner(logger, client.Models, cfg)
}

func newPlanner(logger *slog.Logger, models contentGenerator, cfg config.LLMConfig) (*Planner, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", ErrInvalidConfig)
	}

	tmpl, err := template.New("orient").Parse(promptTemplate)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v", ErrInvalidConfig, err)
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 3
	}
	delay := cfg.RetryDelaySeconds
	if delay < 1 {
		delay = 2
	}

	return &Planner{
		logger:     logger.With(slog.String("component", "gemini_planner")),
		models:     models,
		model:      cfg.ModelName,
		prompt:     tmpl,
		maxRetries: maxRetries,
		baseDelay:  time.Duration(delay) * time.Second,
		sleep:      sleepContext,
	}, nil
}

// Plan asks the model to rank titles and returns them as orient content.
// Titles the model leaves out are appended unscored.
func (p *Planner) Plan(ctx context.Context, titles []string) (domain.OrientContent, error) {
	titles = normalizeTitles(titles)
	if len(titles) == 0 {
		return domain.OrientContent{}, ErrNoTasks
	}

	prompt, err := p.createPrompt(titles)
	if err != nil {
		return domain.OrientContent{}, err
	}

	resp, err := p.callWithRetry(ctx, prompt)
	if err != nil {
		return domain.OrientContent{}, err
	}
	return parseResponse(resp, titles)
}

func (p *Planner) createPrompt(titles []string) (string, error) {
	var buf bytes.Buffer
	if err := p.prompt.Execute(&buf, promptData{Tasks: titles}); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}

// callWithRetry calls the model, retrying transient failures with
// exponential backoff and jitter. Blocked or malformed answers are returned
// immediately.
func (p *Planner) callWithRetry(ctx context.Context, prompt string) (*ResponseSchema, error) {
	for attempt := 0; ; attempt++ {
		log := p.logger.With(slog.Int("attempt", attempt+1), slog.Int("max_attempts", p.maxRetries+1))
		log.DebugContext(ctx, "calling gemini")

		resp, err := p.models.GenerateContent(ctx, p.model, genai.Text(prompt),
			&genai.GenerateContentConfig{ResponseMIMEType: "application/json"})
		if err == nil {
			parsed, perr := decodeResponse(resp)
			if perr != nil {
				log.WarnContext(ctx, "gemini returned an unusable answer", redact.ErrorAttr(perr))
				return nil, perr
			}
			return parsed, nil
		}

		log.WarnContext(ctx, "gemini call failed", redact.ErrorAttr(err))
		if attempt >= p.maxRetries {
			return nil, fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
				ErrTransientFailure, p.maxRetries, err)
		}

		// delay = base * 2^attempt * [0.5, 1.0)
		backoff := float64(p.baseDelay) * math.Pow(2, float64(attempt))
		delay := time.Duration(backoff * (0.5 + rand.Float64()*0.5))
		if err := p.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransientFailure, err)
		}
	}
}

func decodeResponse(resp *genai.GenerateContentResponse) (*ResponseSchema, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no content generated", ErrInvalidResponse)
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, ErrContentBlocked
	}
	if candidate.Content == nil {
		return nil, fmt.Errorf("%w: empty content in response", ErrInvalidResponse)
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			text.WriteString(part.Text)
		}
	}

	var parsed ResponseSchema
	if err := json.Unmarshal([]byte(stripFence(text.String())), &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON response: %v", ErrInvalidResponse, err)
	}
	return &parsed, nil
}

// stripFence removes a markdown code fence around a JSON answer.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func parseResponse(resp *ResponseSchema, titles []string) (domain.OrientContent, error) {
	byKey := make(map[string]string, len(titles))
	for _, t := range titles {
		byKey[titleKey(t)] = t
	}

	used := make(map[string]bool, len(titles))
	tasks := make([]domain.NextTask, 0, len(titles))
	for _, ranked := range resp.Tasks {
		key := titleKey(ranked.Title)
		title, ok := byKey[key]
		if !ok || used[key] {
			continue
		}
		used[key] = true
		tasks = append(tasks, domain.NextTask{
			ID:        uuid.New(),
			Title:     title,
			Rationale: strings.TrimSpace(ranked.Rationale),
			Urgency:   clamp01(ranked.Urgency),
			Impact:    clamp01(ranked.Impact),
		})
	}
	if len(tasks) == 0 {
		return domain.OrientContent{}, fmt.Errorf("%w: no submitted task was ranked", ErrInvalidResponse)
	}

	for _, t := range titles {
		if !used[titleKey(t)] {
			tasks = append(tasks, domain.NextTask{ID: uuid.New(), Title: t, Rationale: unrankedRationale})
		}
	}
	return domain.OrientContent{NextTasks: tasks}, nil
}

func normalizeTitles(titles []string) []string {
	seen := make(map[string]bool, len(titles))
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		t = strings.TrimSpace(t)
		if t == "" || seen[titleKey(t)] {
			continue
		}
		seen[titleKey(t)] = true
		out = append(out, t)
	}
	return out
}

func titleKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
