package services

import (
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"
)

// ReaderClient fetches webpage content as markdown through a Jina AI
// Reader endpoint. Both listing pages and event detail pages go through
// it; the markdown output is what the URL classifiers and the LLM see.
type ReaderClient struct {
	httpClient  *http.Client
	baseURL     string
	userAgents  []string
	retryConfig RetryConfig
}

// RetryConfig defines retry behavior for failed requests.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// NewReaderClient creates a reader client against the given base URL,
// typically https://r.jina.ai.
func NewReaderClient(baseURL string) *ReaderClient {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
			MaxVersion: tls.VersionTLS13,
		},
		IdleConnTimeout: 90 * time.Second,
	}

	return &ReaderClient{
		httpClient: &http.Client{
			Timeout:   45 * time.Second,
			Transport: transport,
		},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		userAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Edge/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		retryConfig: RetryConfig{
			MaxRetries:    3,
			InitialDelay:  1 * time.Second,
			MaxDelay:      10 * time.Second,
			BackoffFactor: 2.0,
		},
	}
}

// Fetch retrieves the markdown rendering of a webpage, retrying transient
// failures with exponential backoff. Client errors (4xx) do not retry.
func (r *ReaderClient) Fetch(ctx context.Context, pageURL string) (string, error) {
	if err := r.validateURL(pageURL); err != nil {
		return "", err
	}

	var lastErr error

	for attempt := 0; attempt <= r.retryConfig.MaxRetries; attempt++ {
		content, err := r.attemptFetch(ctx, pageURL, attempt)
		if err == nil {
			return content, nil
		}
		lastErr = err

		if strings.Contains(err.Error(), "status 4") {
			break
		}
		if attempt < r.retryConfig.MaxRetries {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(r.calculateDelay(attempt)):
			}
		}
	}

	return "", fmt.Errorf("failed after %d attempts: %w", r.retryConfig.MaxRetries+1, lastErr)
}

// attemptFetch performs a single fetch attempt.
func (r *ReaderClient) attemptFetch(ctx context.Context, pageURL string, attempt int) (string, error) {
	readerURL := fmt.Sprintf("%s/%s", r.baseURL, pageURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, readerURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	r.setHeaders(req, attempt)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("reader request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("reader returned status %d: %s", resp.StatusCode, string(body))
	}

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	content, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read reader response: %w", err)
	}

	contentStr := string(content)
	if len(contentStr) < 100 {
		return "", fmt.Errorf("content too short (%d chars), might be an error page", len(contentStr))
	}

	return contentStr, nil
}

// setHeaders sets realistic browser headers; the user agent rotates across
// retry attempts.
func (r *ReaderClient) setHeaders(req *http.Request, attempt int) {
	req.Header.Set("User-Agent", r.userAgents[attempt%len(r.userAgents)])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "identity")
	req.Header.Set("Connection", "keep-alive")

	if attempt > 0 {
		req.Header.Set("Cache-Control", "no-cache")
		req.Header.Set("Pragma", "no-cache")
	}
}

// calculateDelay calculates exponential backoff delay with jitter.
func (r *ReaderClient) calculateDelay(attempt int) time.Duration {
	delay := float64(r.retryConfig.InitialDelay)*(r.retryConfig.BackoffFactor*float64(attempt)) +
		rand.Float64()*0.1*float64(r.retryConfig.InitialDelay)

	if delay > float64(r.retryConfig.MaxDelay) {
		delay = float64(r.retryConfig.MaxDelay)
	}
	if delay < float64(r.retryConfig.InitialDelay) {
		delay = float64(r.retryConfig.InitialDelay)
	}
	return time.Duration(delay)
}

func (r *ReaderClient) validateURL(pageURL string) error {
	if pageURL == "" {
		return fmt.Errorf("URL cannot be empty")
	}
	if len(pageURL) > 2048 {
		return fmt.Errorf("URL too long: %d characters", len(pageURL))
	}
	if !strings.HasPrefix(pageURL, "http://") && !strings.HasPrefix(pageURL, "https://") {
		return fmt.Errorf("URL must start with http:// or https://")
	}
	return nil
}
