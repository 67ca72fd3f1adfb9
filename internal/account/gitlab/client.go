/* Copyright (c) 2025 Ben Boeckel <mathstuf@gmail.com>
 * SPDX-License-Identifier: MIT OR Apache-2.0 */
package gitlab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const userAgent = "devtodo v0.1.0"

type client struct {
	http    *http.Client
	baseURL string
	token   string
}

func newClient(host, token string) (*client, error) {
	base, err := url.Parse(fmt.Sprintf("https://%s/api/v4", host))
	if err != nil {
		return nil, fmt.Errorf("gitlab: base url for %s: %w", host, err)
	}
	if token == "" {
		return nil, errors.New("gitlab: empty token")
	}

	return &client{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: base.String(),
		token:   token,
	}, nil
}

// getPaged fetches every page of a list endpoint before returning, following
// the X-Next-Page header until the server stops supplying one.
func getPaged[T any](ctx context.Context, c *client, path string, params url.Values) ([]T, error) {
	var all []T
	page := "1"
	for {
		items, next, err := getPage[T](ctx, c, path, params, page)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if next == "" {
			break
		}
		page = next
	}
	return all, nil
}

func getPage[T any](ctx context.Context, c *client, path string, params url.Values, page string) ([]T, string, error) {
	q := url.Values{}
	for key, values := range params {
		q[key] = values
	}
	q.Set("per_page", "100")
	q.Set("page", page)
	u := c.baseURL + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", fmt.Errorf("gitlab: build request for %s: %w", path, err)
	}
	req.Header.Set("PRIVATE-TOKEN", c.token)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("gitlab: send request to %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, "", fmt.Errorf("gitlab: api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var items []T
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, "", fmt.Errorf("gitlab: decode response for %s: %w", path, err)
	}

	return items, resp.Header.Get("X-Next-Page"), nil
}
