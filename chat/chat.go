// Package chat sends matched text to a remote text-completion API.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"
)

const (
	DefaultURL     = "https://apifreellm.com/api/chat"
	DefaultTimeout = 30 * time.Second

	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/121.0.0.0 Safari/537.36"

	// DefaultBase is the prompt prefix used when the caller supplies none.
	DefaultBase = "## Output format: {year:amount}, do not include any explaining text## " +
		"## Instruction: use the following information, apple's earning per share for the last 3 years, " +
		"basic and not diluted ## \n ## Information : \n"

	promptSuffix = "##"
)

var ErrNotSuccess = errors.New("completion API did not report success")

// Result is returned for every call, including failed ones.
type Result struct {
	OriginalText string `json:"original_text"`
	Response     string `json:"response"`
	Length       int    `json:"length"` // characters in the prompt
	Error        string `json:"error,omitempty"`
}

// Failed reports whether the completion could not be obtained.
func (r Result) Failed() bool {
	return r.Error != ""
}

type request struct {
	Message string `json:"message"`
}

type response struct {
	Status   string `json:"status"`
	Response string `json:"response"`
	Error    string `json:"error"`
}

// Config holds everything the client sends with a request.
type Config struct {
	URL     string
	Headers map[string]string
	Timeout time.Duration
}

// DefaultConfig returns the configuration of the public endpoint.
func DefaultConfig() Config {
	return Config{
		URL: DefaultURL,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"User-Agent":   DefaultUserAgent,
		},
		Timeout: DefaultTimeout,
	}
}

type Client struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

func NewClient(config Config, logger *slog.Logger) *Client {
	if config.URL == "" {
		config.URL = DefaultURL
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger,
	}
}

// Prompt builds the prompt sent for text. An empty base uses DefaultBase.
func Prompt(text, base string) string {
	if base == "" {
		base = DefaultBase
	}
	return base + text + promptSuffix
}

// Ask sends text with the base prompt and returns the completion.
// Failures are logged and reported in Result.Error.
func (c *Client) Ask(ctx context.Context, text, base string) Result {
	prompt := Prompt(text, base)
	result := Result{
		OriginalText: text,
		Length:       utf8.RuneCountInString(prompt),
	}

	answer, err := c.complete(ctx, prompt)
	if err != nil {
		c.logger.Error("completion request failed", "url", c.config.URL, "err", err)
		result.Error = err.Error()
		return result
	}

	c.logger.Debug("completion received", "bytes", len(answer))
	result.Response = answer
	return result
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(request{Message: prompt})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var out response
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("HTTP %d: unable to decode response: %w", resp.StatusCode, err)
	}

	if out.Status != "success" {
		msg := out.Error
		if msg == "" {
			msg = fmt.Sprintf("status %q", out.Status)
		}
		return "", fmt.Errorf("%w: %s", ErrNotSuccess, msg)
	}
	return out.Response, nil
}
