package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"github.com/victornm/scamquiz/internal/domain"
	"github.com/victornm/scamquiz/internal/errors"
	"github.com/victornm/scamquiz/internal/telemetry"
)

const (
	defaultModel   = "gemini-1.5-flash"
	defaultTimeout = 30 * time.Second
	defaultRPM     = 60
)

const (
	opGenerateScam  = "generate_scam"
	opGenerateLegit = "generate_legit"
	opAnalyze       = "analyze"
)

type Config struct {
	APIKey      string
	Model       string
	Temperature float32
	// Timeout bounds a single model request.
	Timeout time.Duration
	// RequestsPerMinute is shared by every request of the client. Defaults to 60, negative disables the limit.
	RequestsPerMinute int
	// Templates are example scam messages new questions are modelled on. Defaults to DefaultTemplates.
	Templates []string
	Metrics   *telemetry.Metrics
}

type model interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Client generates quiz examples and analyses with a Gemini model.
type Client struct {
	model     model
	close     func() error
	limiter   *rate.Limiter
	timeout   time.Duration
	templates []string
	metrics   *telemetry.Metrics
	pick      func(n int) int
}

func NewClient(ctx context.Context, c Config) (*Client, error) {
	gc, err := genai.NewClient(ctx, option.WithAPIKey(c.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}

	name := c.Model
	if name == "" {
		name = defaultModel
	}
	m := gc.GenerativeModel(name)
	if c.Temperature > 0 {
		m.SetTemperature(c.Temperature)
	}

	cl := newClient(m, c)
	cl.close = gc.Close
	return cl, nil
}

func newClient(m model, c Config) *Client {
	cl := &Client{
		model:     m,
		close:     func() error { return nil },
		timeout:   c.Timeout,
		templates: c.Templates,
		metrics:   c.Metrics,
		pick:      rand.IntN,
	}

	if cl.timeout <= 0 {
		cl.timeout = defaultTimeout
	}
	if len(cl.templates) == 0 {
		cl.templates = DefaultTemplates
	}

	switch rpm := c.RequestsPerMinute; {
	case rpm < 0:
		cl.limiter = rate.NewLimiter(rate.Inf, 0)
	case rpm == 0:
		cl.limiter = rate.NewLimiter(rate.Every(time.Minute/defaultRPM), 2)
	default:
		cl.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 2)
	}

	return cl
}

func (c *Client) Close() error {
	return c.close()
}

// Generate returns a scam message modelled on a random template together with a legitimate
// message on the same topic. Both are requested concurrently and both must succeed.
func (c *Client) Generate(ctx context.Context, hint string) (domain.Example, error) {
	template := c.templates[c.pick(len(c.templates))]

	var ex domain.Example
	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		ex.ScamText, err = c.complete(gctx, opGenerateScam, scamPrompt(template, hint))
		return err
	})
	eg.Go(func() (err error) {
		ex.LegitText, err = c.complete(gctx, opGenerateLegit, legitPrompt(template, hint))
		return err
	})

	if err := eg.Wait(); err != nil {
		slog.ErrorContext(ctx, "gemini: generate example failed", "error", err)
		return domain.Example{}, errors.Extend(domain.ErrGenerationFailed, errors.WithCause(err))
	}

	return ex, nil
}

// Analyze explains the signs that make req.Text a scam or a legitimate message.
func (c *Client) Analyze(ctx context.Context, req domain.AnalysisRequest) (string, error) {
	text, err := c.complete(ctx, opAnalyze, analysisPrompt(req))
	if err != nil {
		slog.ErrorContext(ctx, "gemini: analyze failed", "error", err)
		return "", errors.Extend(domain.ErrAnalysisFailed, errors.WithCause(err))
	}

	return text, nil
}

func (c *Client) complete(ctx context.Context, op, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%s: wait for quota: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	c.metrics.ObserveModelRequest(op, time.Since(start))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	text := strings.TrimSpace(responseText(resp))
	if text == "" {
		return "", fmt.Errorf("%s: empty response", op)
	}

	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String()
}
