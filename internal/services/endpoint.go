package services

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

	"github.com/MegaGrindStone/chat-widget/internal/widget"
)

// Endpoint is a Provider backed by a plain HTTP endpoint. It POSTs {"prompt": ...} and expects a JSON
// body of the form {"response": ...}.
type Endpoint struct {
	url   string
	token string

	client *http.Client

	logger *slog.Logger
}

type endpointRequest struct {
	Prompt string `json:"prompt"`
}

type endpointResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

const endpointProviderName = "http"

// NewEndpoint creates an Endpoint for url. If token is not empty it is sent as a bearer token. A zero
// timeout means no client-side timeout.
func NewEndpoint(url, token string, timeout time.Duration, logger *slog.Logger) Endpoint {
	return Endpoint{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: timeout},
		logger: logger.With(slog.String("module", "endpoint")),
	}
}

// Generate implements widget.Provider.
func (e Endpoint) Generate(ctx context.Context, prompt string) (string, error) {
	reply, err := e.generate(ctx, prompt)
	if err != nil {
		return "", &widget.NetworkError{Provider: endpointProviderName, Err: err}
	}
	return reply, nil
}

func (e Endpoint) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(endpointRequest{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("error reading response: %w", err)
	}

	var res endpointResponse
	decodeErr := json.Unmarshal(raw, &res)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr == nil && res.Error != "" {
			return "", fmt.Errorf("endpoint returned %d: %s", resp.StatusCode, res.Error)
		}
		return "", fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("error unmarshaling response: %w", decodeErr)
	}
	if res.Response == "" {
		return "", errors.New("response field is empty")
	}

	e.logger.Debug("Endpoint reply", slog.Int("length", len(res.Response)))
	return res.Response, nil
}
