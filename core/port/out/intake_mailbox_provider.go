// Package out defines outbound ports (driven ports) for the intake pipeline.
package out

import (
	"context"

	"intake_server/core/domain"
)

// =============================================================================
// Mailbox Provider Port (Graph, Gmail)
// =============================================================================

// MailboxProvider is the outbound port for the mail provider. Implementations
// authenticate with an application-level (client-credentials) flow and operate
// on shared company mailboxes, not per-user sessions.
type MailboxProvider interface {
	ProviderName() string

	// ListUnread returns up to pageSize unread messages in the mailbox,
	// newest first. Bodies are preview-length only.
	ListUnread(ctx context.Context, mailbox string, pageSize int) ([]domain.InboundEmail, error)

	// FetchBody retrieves the full text/html body of one message.
	FetchBody(ctx context.Context, mailbox, messageID string) (*domain.EmailBody, error)

	// SetFlag applies the provider-side follow-up flag with a justification
	// note where the provider supports one.
	SetFlag(ctx context.Context, mailbox, messageID, justification string) error

	// MarkRead marks the message as read without flagging it.
	MarkRead(ctx context.Context, mailbox, messageID string) error

	// ListThread returns up to limit prior messages of the conversation,
	// newest first.
	ListThread(ctx context.Context, mailbox, conversationID string, limit int) ([]domain.ThreadMessage, error)
}

// ProviderFactory builds a MailboxProvider by configured provider type.
type ProviderFactory interface {
	CreateProvider(ctx context.Context, providerType string) (MailboxProvider, error)
}
