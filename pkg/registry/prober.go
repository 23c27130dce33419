/*
 * Copyright 2026 FleetMind Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package registry

import (
	"context"
	"fmt"
	"net/http"
)

//go:generate mockgen -destination=mock_prober.go -package=registry github.com/fleetmind/registry/pkg/registry Prober

// Prober performs a liveness check against a registered network service.
type Prober interface {
	Probe(ctx context.Context, host string, port int) error
}

const defaultHealthPath = "/health"

// HTTPProber probes the well-known health path over plain HTTP.
type HTTPProber struct {
	client *http.Client
	path   string
}

// NewHTTPProber builds a prober; a nil client uses http.DefaultClient and an
// empty path uses /health.
func NewHTTPProber(client *http.Client, path string) *HTTPProber {
	if client == nil {
		client = http.DefaultClient
	}

	if path == "" {
		path = defaultHealthPath
	}

	return &HTTPProber{client: client, path: path}
}

// Probe issues GET http://host:port<path>; any 2xx response is success.
func (p *HTTPProber) Probe(ctx context.Context, host string, port int) error {
	url := fmt.Sprintf("http://%s:%d%s", host, port, p.path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building probe request for %s: %w", url, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("probing %s: %w", url, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("probing %s: unexpected status %d", url, resp.StatusCode)
	}

	return nil
}

var _ Prober = (*HTTPProber)(nil)
