// Package gmail provides the Gmail mailbox adapter.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"intake_server/core/domain"
	"intake_server/core/port/out"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Provider implements out.MailboxProvider for Gmail. It authenticates with a
// service account that has domain-wide delegation and impersonates each
// company mailbox, so no per-user OAuth dance is needed.
type Provider struct {
	credentialsJSON []byte

	mu       sync.Mutex
	services map[string]*gmail.Service
}

var _ out.MailboxProvider = (*Provider)(nil)

// NewProvider creates a Gmail provider from service-account credentials JSON.
func NewProvider(credentialsJSON []byte) (*Provider, error) {
	if len(credentialsJSON) == 0 {
		return nil, fmt.Errorf("gmail provider requires service account credentials")
	}
	return &Provider{
		credentialsJSON: credentialsJSON,
		services:        make(map[string]*gmail.Service),
	}, nil
}

// ProviderName returns the provider name.
func (p *Provider) ProviderName() string {
	return "gmail"
}

// serviceFor returns a Gmail service impersonating the given mailbox,
// creating and caching it on first use.
func (p *Provider) serviceFor(ctx context.Context, mailbox string) (*gmail.Service, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if svc, ok := p.services[mailbox]; ok {
		return svc, nil
	}

	config, err := google.JWTConfigFromJSON(p.credentialsJSON, gmail.GmailModifyScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account credentials: %w", err)
	}
	config.Subject = mailbox

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	p.services[mailbox] = svc
	return svc, nil
}

// ListUnread returns up to pageSize unread inbox messages, newest first.
// Message details are fetched with bounded concurrency to stay under the
// per-user rate limit.
func (p *Provider) ListUnread(ctx context.Context, mailbox string, pageSize int) ([]domain.InboundEmail, error) {
	svc, err := p.serviceFor(ctx, mailbox)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Users.Messages.List(mailbox).
		Q("is:unread in:inbox").
		MaxResults(int64(pageSize)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list unread messages: %w", err)
	}

	if len(resp.Messages) == 0 {
		return []domain.InboundEmail{}, nil
	}

	const maxConcurrency = 5
	type result struct {
		index int
		msg   *gmail.Message
		err   error
	}

	results := make(chan result, len(resp.Messages))
	semaphore := make(chan struct{}, maxConcurrency)

	for i, m := range resp.Messages {
		go func(idx int, msgID string) {
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			msg, err := svc.Users.Messages.Get(mailbox, msgID).
				Format("full").
				Context(ctx).
				Do()
			results <- result{index: idx, msg: msg, err: err}
		}(i, m.Id)
	}

	fetched := make([]*gmail.Message, len(resp.Messages))
	for range resp.Messages {
		r := <-results
		if r.err == nil && r.msg != nil {
			fetched[r.index] = r.msg
		}
	}

	emails := make([]domain.InboundEmail, 0, len(fetched))
	for _, msg := range fetched {
		if msg == nil {
			continue
		}
		emails = append(emails, convertMessage(mailbox, msg))
	}
	return emails, nil
}

// FetchBody retrieves the full body of one message.
func (p *Provider) FetchBody(ctx context.Context, mailbox, messageID string) (*domain.EmailBody, error) {
	svc, err := p.serviceFor(ctx, mailbox)
	if err != nil {
		return nil, err
	}

	msg, err := svc.Users.Messages.Get(mailbox, messageID).
		Format("full").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch body: %w", err)
	}

	html, text := parseBody(msg.Payload)
	body := &domain.EmailBody{
		Text:    text,
		HTML:    html,
		Preview: msg.Snippet,
	}
	if body.Text == "" {
		body.Text = msg.Snippet
	}
	return body, nil
}

// SetFlag stars the message. Gmail has no per-message flag note, so the
// justification only travels in the audit record.
func (p *Provider) SetFlag(ctx context.Context, mailbox, messageID, justification string) error {
	svc, err := p.serviceFor(ctx, mailbox)
	if err != nil {
		return err
	}

	_, err = svc.Users.Messages.Modify(mailbox, messageID, &gmail.ModifyMessageRequest{
		AddLabelIds: []string{"STARRED"},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to set flag: %w", err)
	}
	return nil
}

// MarkRead removes the UNREAD label.
func (p *Provider) MarkRead(ctx context.Context, mailbox, messageID string) error {
	svc, err := p.serviceFor(ctx, mailbox)
	if err != nil {
		return err
	}

	_, err = svc.Users.Messages.Modify(mailbox, messageID, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to mark read: %w", err)
	}
	return nil
}

// ListThread returns up to limit prior messages of a thread, newest first.
func (p *Provider) ListThread(ctx context.Context, mailbox, conversationID string, limit int) ([]domain.ThreadMessage, error) {
	svc, err := p.serviceFor(ctx, mailbox)
	if err != nil {
		return nil, err
	}

	thread, err := svc.Users.Threads.Get(mailbox, conversationID).
		Format("metadata").
		MetadataHeaders("From", "Subject").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}

	// Gmail returns thread messages oldest first.
	messages := make([]domain.ThreadMessage, 0, limit)
	for i := len(thread.Messages) - 1; i >= 0 && len(messages) < limit; i-- {
		msg := thread.Messages[i]
		from, _ := parseAddress(headerValue(msg, "From"))
		messages = append(messages, domain.ThreadMessage{
			Date:    time.UnixMilli(msg.InternalDate).UTC(),
			From:    from,
			Subject: headerValue(msg, "Subject"),
			Preview: msg.Snippet,
		})
	}
	return messages, nil
}

func convertMessage(mailbox string, msg *gmail.Message) domain.InboundEmail {
	fromEmail, fromName := parseAddress(headerValue(msg, "From"))

	return domain.InboundEmail{
		ID:                msg.Id,
		InternetMessageID: headerValue(msg, "Message-ID"),
		Mailbox:           mailbox,
		Subject:           headerValue(msg, "Subject"),
		From: domain.EmailAddress{
			Name:  fromName,
			Email: fromEmail,
		},
		BodyPreview:    msg.Snippet,
		HasAttachments: hasAttachments(msg.Payload),
		ReceivedAt:     time.UnixMilli(msg.InternalDate).UTC(),
		ConversationID: msg.ThreadId,
		Categories:     msg.LabelIds,
	}
}

func headerValue(msg *gmail.Message, name string) string {
	if msg.Payload == nil {
		return ""
	}
	for _, h := range msg.Payload.Headers {
		if h.Name == name {
			return h.Value
		}
	}
	return ""
}

func parseAddress(value string) (email, name string) {
	if value == "" {
		return "", ""
	}
	addr, err := mail.ParseAddress(value)
	if err != nil {
		return value, ""
	}
	return addr.Address, addr.Name
}

func parseBody(payload *gmail.MessagePart) (html, text string) {
	if payload == nil {
		return "", ""
	}

	switch payload.MimeType {
	case "text/plain":
		data, _ := base64.URLEncoding.DecodeString(payload.Body.Data)
		text = string(data)
	case "text/html":
		data, _ := base64.URLEncoding.DecodeString(payload.Body.Data)
		html = string(data)
	}

	for _, part := range payload.Parts {
		h, t := parseBody(part)
		if html == "" {
			html = h
		}
		if text == "" {
			text = t
		}
	}
	return html, text
}

func hasAttachments(payload *gmail.MessagePart) bool {
	if payload == nil {
		return false
	}
	for _, part := range payload.Parts {
		if part.Filename != "" {
			return true
		}
		if hasAttachments(part) {
			return true
		}
	}
	return false
}
