// Package nutrition estimates the nutritional content of a food entry by
// asking an LLM provider for four numbers. Estimates are best effort: any
// failure surfaces as ErrUnavailable and callers keep the entry without
// nutrition data.
package nutrition

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	openAIAPIURL    = "https://api.openai.com/v1/chat/completions"
	anthropicAPIURL = "https://api.anthropic.com/v1/messages"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ErrUnavailable is returned when no estimate can be produced, whether
// because the client is unconfigured, the provider errored, or its reply
// could not be parsed.
var ErrUnavailable = errors.New("nutrition estimate unavailable")

// Estimate holds per-entry nutrition values. Calories are kcal, the
// macros are grams.
type Estimate struct {
	Calories float64
	Protein  float64
	Carbs    float64
	Fat      float64
}

// Config selects the provider and carries its credentials.
type Config struct {
	Provider     string
	OpenAIKey    string
	AnthropicKey string
}

type Client struct {
	config     Config
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.Provider == "" {
		cfg.Provider = ProviderOpenAI
	}
	c := &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the selected provider has an API key.
func (c *Client) Configured() bool {
	switch c.config.Provider {
	case ProviderAnthropic:
		return c.config.AnthropicKey != ""
	default:
		return c.config.OpenAIKey != ""
	}
}

func prompt(foodName, portion string) string {
	return fmt.Sprintf(
		"Estimate the nutritional content of %s of %s. "+
			"Reply with exactly four numbers separated by commas, in this order: "+
			"calories (kcal), protein (g), carbohydrates (g), fat (g). "+
			"Reply with only the numbers, no other text.",
		portion, foodName,
	)
}

// Estimate asks the configured provider for nutrition values. A transient
// provider failure is retried once with backoff; all failures collapse
// into ErrUnavailable.
func (c *Client) Estimate(ctx context.Context, foodName, portion string) (*Estimate, error) {
	if !c.Configured() {
		return nil, ErrUnavailable
	}

	var reply string
	backoff := retry.WithMaxRetries(1, retry.NewFibonacci(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		switch c.config.Provider {
		case ProviderAnthropic:
			reply, err = c.askAnthropic(ctx, foodName, portion)
		default:
			reply, err = c.askOpenAI(ctx, foodName, portion)
		}
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	est, err := parseEstimate(reply)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return est, nil
}

// parseEstimate extracts four numbers from the provider's reply. It is
// lenient about surrounding text since models do not always follow the
// numbers-only instruction.
func parseEstimate(reply string) (*Estimate, error) {
	fields := strings.FieldsFunc(reply, func(r rune) bool {
		return !(r >= '0' && r <= '9') && r != '.' && r != '-'
	})

	var nums []float64
	for _, f := range fields {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil {
			continue
		}
		nums = append(nums, n)
	}
	if len(nums) < 4 {
		return nil, fmt.Errorf("expected 4 numbers, found %d in %q", len(nums), reply)
	}

	return &Estimate{
		Calories: nums[0],
		Protein:  nums[1],
		Carbs:    nums[2],
		Fat:      nums[3],
	}, nil
}
