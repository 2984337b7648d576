// Copyright 2025.
// SPDX-License-Identifier: Apache-2.0

package cfn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-logr/logr"
)

// Reporter delivers the terminal response for a custom resource invocation.
//
// Exactly one response must be sent per invocation regardless of how the
// invocation went; the controllers own that invariant, the Reporter owns the
// wire protocol: an HTTP PUT of the response JSON to the event's pre-signed
// ResponseURL with an empty Content-Type header and exact Content-Length.
type Reporter struct {
	client *http.Client

	// defaultURL is used when the event carries no ResponseURL. Real events
	// always carry one; the fallback exists for local harnesses.
	defaultURL string
}

// ReporterOption configures a Reporter.
type ReporterOption func(*Reporter)

// WithHTTPClient replaces the HTTP client used for callback delivery.
func WithHTTPClient(client *http.Client) ReporterOption {
	return func(r *Reporter) {
		r.client = client
	}
}

// WithDefaultResponseURL sets the fallback destination used when an event
// carries no ResponseURL.
func WithDefaultResponseURL(url string) ReporterOption {
	return func(r *Reporter) {
		r.defaultURL = url
	}
}

// NewReporter creates a Reporter with a short-timeout HTTP client suitable
// for the pre-signed S3 callback endpoint.
func NewReporter(opts ...ReporterOption) *Reporter {
	r := &Reporter{
		client: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Send delivers the terminal response for the given event. A delivery
// failure is returned to the caller for logging only: the invocation has
// already terminated and there is nothing left to retry.
func (r *Reporter) Send(ctx context.Context, event *Event, response *Response) error {
	log := logr.FromContextOrDiscard(ctx).WithValues(
		"requestId", event.RequestID,
		"logicalResourceId", event.LogicalResourceID,
		"status", response.Status)

	url := event.ResponseURL
	if url == "" {
		url = r.defaultURL
	}
	if url == "" {
		return fmt.Errorf("no response URL available for request %s", event.RequestID)
	}

	body, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to serialize response: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build callback request: %w", err)
	}

	// The pre-signed URL is signed with an empty content type; anything else
	// fails signature validation on the S3 side.
	req.Header.Set("Content-Type", "")
	req.ContentLength = int64(len(body))

	log.Info("Sending terminal response", "url", url, "bytes", len(body))

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver response: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("response delivery rejected with status %d", resp.StatusCode)
	}

	log.Info("Terminal response delivered")
	return nil
}
