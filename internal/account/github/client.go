/* Copyright (c) 2025 Ben Boeckel <mathstuf@gmail.com>
 * SPDX-License-Identifier: MIT OR Apache-2.0 */

// Package github queries a GitHub instance over its GraphQL API.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const (
	// The maximum number of times we will retry server errors.
	backoffLimit = 5
	// The delay retries start at.
	backoffStart = time.Second
	// How much to scale retry delays for a single query.
	backoffScale = 2
)

const userAgent = "devtodo v0.1.0"

// errBackoffExhausted replaces the underlying unavailable error once every
// retry attempt has been spent.
var errBackoffExhausted = errors.New("github: failure even after exponential backoff")

var errEmptyResponse = errors.New("github: no response data")

// unavailableError is the only error class worth sleeping on.
type unavailableError struct {
	status int
}

func (e *unavailableError) Error() string {
	return fmt.Sprintf("github: service unavailable (status %d)", e.status)
}

type client struct {
	http     *http.Client
	endpoint string
	log      zerolog.Logger
	sleep    func(time.Duration)
}

func newClient(host, token string, log zerolog.Logger) (*client, error) {
	endpoint, err := url.Parse(fmt.Sprintf("https://%s/graphql", host))
	if err != nil {
		return nil, fmt.Errorf("github: endpoint for %s: %w", host, err)
	}
	if token == "" {
		return nil, errors.New("github: empty token")
	}

	httpClient := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	httpClient.Timeout = 30 * time.Second

	return &client{
		http:     httpClient,
		endpoint: endpoint.String(),
		log:      log,
		sleep:    time.Sleep,
	}, nil
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

// send runs one GraphQL query with bounded exponential backoff. Only the
// unavailable error class is retried; anything else aborts immediately.
func (c *client) send(ctx context.Context, name, query string, vars map[string]any, out any) error {
	timeout := backoffStart
	for attempt := 0; attempt < backoffLimit; attempt++ {
		err := c.sendOnce(ctx, name, query, vars, out)
		if err == nil {
			return nil
		}
		var unavail *unavailableError
		if !errors.As(err, &unavail) {
			return err
		}
		c.sleep(timeout)
		timeout *= backoffScale
	}
	return errBackoffExhausted
}

func (c *client) sendOnce(ctx context.Context, name, query string, vars map[string]any, out any) error {
	body, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": vars,
	})
	if err != nil {
		return fmt.Errorf("github: marshal query %s: %w", name, err)
	}

	c.log.Trace().Str("query", name).Msg("sending GraphQL query")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("github: build request for %s: %w", name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("github: send request to %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		c.log.Warn().Int("status", resp.StatusCode).Str("query", name).Msg("service error for query; retrying with backoff")
		return &unavailableError{status: resp.StatusCode}
	}
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("github: api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var envelope gqlEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("github: decode response for %s: %w", name, err)
	}
	if len(envelope.Errors) > 0 {
		messages := make([]string, 0, len(envelope.Errors))
		for _, gerr := range envelope.Errors {
			messages = append(messages, gerr.Message)
		}
		return fmt.Errorf("github: graphql error: [%q]", strings.Join(messages, `", "`))
	}
	if len(envelope.Data) == 0 || bytes.Equal(envelope.Data, []byte("null")) {
		return errEmptyResponse
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("github: decode data for %s: %w", name, err)
	}
	return nil
}
