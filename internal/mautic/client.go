// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mautic provides the Mautic contact API client and the
// create-or-update decision for one contact.
package mautic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/spaceo/mautic-sync/internal/models"
)

// Client talks to the Mautic REST API. The http.Client is injected so the
// caller decides the auth mechanism: a plain client plus Basic credentials,
// or an oauth2 client-credentials client with empty username.
type Client struct {
	httpClient *http.Client
	baseURL    string
	username   string
	password   string
}

// NewClient creates a Mautic API client. username/password may be empty when
// httpClient already injects authentication (OAuth2).
func NewClient(httpClient *http.Client, baseURL, username, password string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		password:   password,
	}
}

// contactResponse unwraps the {contact: {id: ...}} success envelope.
type contactResponse struct {
	Contact struct {
		ID json.Number `json:"id"`
	} `json:"contact"`
}

// CreateContact POSTs a new contact and returns the id Mautic assigned.
// An unparseable success response logs and returns an empty id rather than
// failing the profile.
func (c *Client) CreateContact(ctx context.Context, contact *models.Contact, distinctID string) (string, error) {
	url := c.baseURL + "/api/contacts/new"
	slog.Info("creating Mautic contact", "url", url, "email", contact.Email, "distinct_id", distinctID)

	resp, err := c.send(ctx, http.MethodPost, url, contact)
	if err != nil {
		return "", fmt.Errorf("mautic POST: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		slog.Error("mautic POST error", "status", resp.StatusCode, "distinct_id", distinctID, "body", string(body))
		return "", fmt.Errorf("mautic POST returned HTTP %d", resp.StatusCode)
	}

	var envelope contactResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		slog.Error("failed to parse Mautic contact id", "error", err, "distinct_id", distinctID)
		return "", nil
	}
	return envelope.Contact.ID.String(), nil
}

// EditContact PATCHes an existing contact. Returns a not-found error when
// the id is no longer valid on the Mautic side, so the caller can fall back
// to a create.
func (c *Client) EditContact(ctx context.Context, mauticID string, contact *models.Contact, distinctID string) error {
	url := fmt.Sprintf("%s/api/contacts/%s/edit", c.baseURL, mauticID)
	slog.Info("updating Mautic contact", "url", url, "email", contact.Email, "distinct_id", distinctID)

	resp, err := c.send(ctx, http.MethodPatch, url, contact)
	if err != nil {
		return fmt.Errorf("mautic PATCH: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return &notFoundError{mauticID: mauticID}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		slog.Error("mautic PATCH error", "status", resp.StatusCode, "distinct_id", distinctID, "body", string(body))
		return fmt.Errorf("mautic PATCH returned HTTP %d", resp.StatusCode)
	}
}

// Upsert creates or updates one contact. knownID is the locally recorded
// Mautic id ("" when the contact has never been created). Returns the
// contact's Mautic id — the existing one on update, the freshly assigned
// one on create, or "" when a create succeeded but the id could not be
// parsed.
//
// State machine (terminal either way): known id → PATCH; PATCH 404 → one
// follow-up POST; no known id → POST directly.
func (c *Client) Upsert(ctx context.Context, contact *models.Contact, distinctID, knownID string) (string, error) {
	if knownID == "" {
		return c.CreateContact(ctx, contact, distinctID)
	}

	err := c.EditContact(ctx, knownID, contact, distinctID)
	if err == nil {
		slog.Info("updated Mautic contact", "mautic_id", knownID, "email", contact.Email)
		return knownID, nil
	}
	if IsNotFound(err) {
		slog.Warn("recorded Mautic id no longer exists, creating",
			"mautic_id", knownID,
			"distinct_id", distinctID,
		)
		return c.CreateContact(ctx, contact, distinctID)
	}
	return "", err
}

// send marshals the contact as the top-level JSON body — Mautic takes the
// field aliases directly, not nested under "contact".
func (c *Client) send(ctx context.Context, method, url string, contact *models.Contact) (*http.Response, error) {
	body, err := json.Marshal(contact)
	if err != nil {
		return nil, fmt.Errorf("marshal contact: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	return c.httpClient.Do(req)
}

// notFoundError marks a PATCH against a contact id Mautic no longer knows.
type notFoundError struct {
	mauticID string
}

func (e *notFoundError) Error() string {
	return fmt.Sprintf("mautic contact %s not found (404)", e.mauticID)
}

// IsNotFound reports whether err is a contact-not-found error.
func IsNotFound(err error) bool {
	var nf *notFoundError
	return errors.As(err, &nf)
}
