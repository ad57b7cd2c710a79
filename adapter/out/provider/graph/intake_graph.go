// Package graph provides the Microsoft Graph mailbox adapter.
package graph

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"intake_server/core/domain"
	"intake_server/core/port/out"

	"golang.org/x/oauth2/clientcredentials"
)

const (
	graphBaseURL = "https://graph.microsoft.com/v1.0"
	graphScope   = "https://graph.microsoft.com/.default"

	listSelect = "id,internetMessageId,conversationId,subject,from,ccRecipients,bodyPreview,hasAttachments,receivedDateTime,importance,categories"
)

// Provider implements out.MailboxProvider for Microsoft Graph. It uses the
// client-credentials flow with application permissions, so it can read any
// company mailbox via /users/{mailbox} without a per-user consent dance.
type Provider struct {
	client *http.Client
}

var _ out.MailboxProvider = (*Provider)(nil)

// Config holds the Azure AD application registration.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

// NewProvider creates a Graph provider. The returned client refreshes its
// app token transparently.
func NewProvider(ctx context.Context, cfg *Config) (*Provider, error) {
	if cfg.TenantID == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("graph provider requires tenant id, client id and client secret")
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.TenantID),
		Scopes:       []string{graphScope},
	}

	return &Provider{client: cc.Client(ctx)}, nil
}

// ProviderName returns the provider name.
func (p *Provider) ProviderName() string {
	return "graph"
}

// ListUnread returns up to pageSize unread messages, newest first.
func (p *Provider) ListUnread(ctx context.Context, mailbox string, pageSize int) ([]domain.InboundEmail, error) {
	params := url.Values{}
	params.Set("$filter", "isRead eq false")
	params.Set("$orderby", "receivedDateTime desc")
	params.Set("$top", fmt.Sprintf("%d", pageSize))
	params.Set("$select", listSelect)

	var resp struct {
		Value []graphMessage `json:"value"`
	}
	path := fmt.Sprintf("/users/%s/messages?%s", url.PathEscape(mailbox), params.Encode())
	if err := p.get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("failed to list unread messages: %w", err)
	}

	emails := make([]domain.InboundEmail, len(resp.Value))
	for i, m := range resp.Value {
		emails[i] = convertMessage(mailbox, &m)
	}
	return emails, nil
}

// FetchBody retrieves the full body of one message. The Prefer header asks
// Graph to convert HTML bodies to text server-side.
func (p *Provider) FetchBody(ctx context.Context, mailbox, messageID string) (*domain.EmailBody, error) {
	var msg graphMessage
	path := fmt.Sprintf("/users/%s/messages/%s?$select=body,bodyPreview",
		url.PathEscape(mailbox), url.PathEscape(messageID))

	req, err := http.NewRequestWithContext(ctx, "GET", graphBaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", `outlook.body-content-type="text"`)
	if err := p.doRequest(req, &msg); err != nil {
		return nil, fmt.Errorf("failed to fetch body: %w", err)
	}

	body := &domain.EmailBody{
		Preview: msg.BodyPreview,
	}
	if msg.Body.ContentType == "html" {
		body.HTML = msg.Body.Content
	} else {
		body.Text = msg.Body.Content
	}
	if body.Text == "" {
		body.Text = msg.BodyPreview
	}
	return body, nil
}

// SetFlag applies the follow-up flag and leaves the justification as a
// category so it shows up in the mail client.
func (p *Provider) SetFlag(ctx context.Context, mailbox, messageID, justification string) error {
	update := map[string]interface{}{
		"flag": map[string]string{"flagStatus": "flagged"},
	}
	if justification != "" {
		update["categories"] = []string{truncate(justification, 100)}
	}

	path := fmt.Sprintf("/users/%s/messages/%s", url.PathEscape(mailbox), url.PathEscape(messageID))
	if err := p.patch(ctx, path, update); err != nil {
		return fmt.Errorf("failed to set flag: %w", err)
	}
	return nil
}

// MarkRead marks a message as read.
func (p *Provider) MarkRead(ctx context.Context, mailbox, messageID string) error {
	path := fmt.Sprintf("/users/%s/messages/%s", url.PathEscape(mailbox), url.PathEscape(messageID))
	if err := p.patch(ctx, path, map[string]bool{"isRead": true}); err != nil {
		return fmt.Errorf("failed to mark read: %w", err)
	}
	return nil
}

// ListThread returns up to limit prior messages of a conversation, newest first.
func (p *Provider) ListThread(ctx context.Context, mailbox, conversationID string, limit int) ([]domain.ThreadMessage, error) {
	params := url.Values{}
	params.Set("$filter", fmt.Sprintf("conversationId eq '%s'", conversationID))
	params.Set("$orderby", "receivedDateTime desc")
	params.Set("$top", fmt.Sprintf("%d", limit))
	params.Set("$select", "from,subject,bodyPreview,receivedDateTime")

	var resp struct {
		Value []graphMessage `json:"value"`
	}
	path := fmt.Sprintf("/users/%s/messages?%s", url.PathEscape(mailbox), params.Encode())
	if err := p.get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("failed to list thread: %w", err)
	}

	thread := make([]domain.ThreadMessage, len(resp.Value))
	for i, m := range resp.Value {
		thread[i] = domain.ThreadMessage{
			Date:    parseGraphTime(m.ReceivedDateTime),
			From:    m.From.EmailAddress.Address,
			Subject: m.Subject,
			Preview: m.BodyPreview,
		}
	}
	return thread, nil
}

// HTTP helpers

func (p *Provider) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", graphBaseURL+path, nil)
	if err != nil {
		return err
	}

	return p.doRequest(req, result)
}

func (p *Provider) patch(ctx context.Context, path string, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "PATCH", graphBaseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return p.doRequest(req, nil)
}

func (p *Provider) doRequest(req *http.Request, result interface{}) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("graph API error: %d - %s", resp.StatusCode, string(body))
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// Graph API types

type graphMessage struct {
	ID                string           `json:"id"`
	InternetMessageID string           `json:"internetMessageId"`
	ConversationID    string           `json:"conversationId"`
	Subject           string           `json:"subject"`
	BodyPreview       string           `json:"bodyPreview"`
	Body              graphBody        `json:"body"`
	From              graphRecipient   `json:"from"`
	CcRecipients      []graphRecipient `json:"ccRecipients"`
	HasAttachments    bool             `json:"hasAttachments"`
	ReceivedDateTime  string           `json:"receivedDateTime"`
	Importance        string           `json:"importance"`
	Categories        []string         `json:"categories"`
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphRecipient struct {
	EmailAddress graphEmailAddress `json:"emailAddress"`
}

type graphEmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

func convertMessage(mailbox string, msg *graphMessage) domain.InboundEmail {
	e := domain.InboundEmail{
		ID:                msg.ID,
		InternetMessageID: msg.InternetMessageID,
		Mailbox:           mailbox,
		Subject:           msg.Subject,
		From: domain.EmailAddress{
			Name:  msg.From.EmailAddress.Name,
			Email: msg.From.EmailAddress.Address,
		},
		BodyPreview:    msg.BodyPreview,
		HasAttachments: msg.HasAttachments,
		ReceivedAt:     parseGraphTime(msg.ReceivedDateTime),
		ConversationID: msg.ConversationID,
		Importance:     msg.Importance,
		Categories:     msg.Categories,
	}
	for _, cc := range msg.CcRecipients {
		e.CC = append(e.CC, domain.EmailAddress{
			Name:  cc.EmailAddress.Name,
			Email: cc.EmailAddress.Address,
		})
	}
	return e
}

func parseGraphTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
