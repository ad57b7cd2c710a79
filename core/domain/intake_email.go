// Package domain holds the core entities of the intake pipeline.
package domain

import "time"

// EmailAddress is a display name plus address pair as reported by the mailbox provider.
type EmailAddress struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// InboundEmail is one unread mailbox message as listed by the provider.
// The preview is length-bounded by the provider; the full body is fetched
// separately and only for flagged mail.
type InboundEmail struct {
	ID                string         `json:"id"`
	InternetMessageID string         `json:"internet_message_id,omitempty"`
	Mailbox           string         `json:"mailbox"`
	Subject           string         `json:"subject"`
	From              EmailAddress   `json:"from"`
	BodyPreview       string         `json:"body_preview"`
	HasAttachments    bool           `json:"has_attachments"`
	ReceivedAt        time.Time      `json:"received_at"`
	ConversationID    string         `json:"conversation_id,omitempty"`
	Importance        string         `json:"importance,omitempty"`
	CC                []EmailAddress `json:"cc,omitempty"`
	Categories        []string       `json:"categories,omitempty"`
}

// SenderEmail returns the lowercase sender address.
func (e *InboundEmail) SenderEmail() string {
	return lowerASCII(e.From.Email)
}

// SenderDomain returns the lowercase domain part of the sender address,
// or "" when the address has no @.
func (e *InboundEmail) SenderDomain() string {
	return DomainOf(e.From.Email)
}

// EmailBody is the full body of a message.
type EmailBody struct {
	Text    string `json:"text"`
	HTML    string `json:"html,omitempty"`
	Preview string `json:"preview"`
}

// ThreadMessage is one prior message in a conversation, newest-first,
// bounded to a small recent window.
type ThreadMessage struct {
	Date    time.Time `json:"date"`
	From    string    `json:"from"`
	Subject string    `json:"subject"`
	Preview string    `json:"preview"`
}

// DomainOf extracts the lowercase domain from an email address.
func DomainOf(email string) string {
	for i := len(email) - 1; i >= 0; i-- {
		if email[i] == '@' {
			return lowerASCII(email[i+1:])
		}
	}
	return ""
}

// DomainMatches reports whether sender domain d matches configured domain c.
// Matching is suffix-based on label boundaries: d == c or d ends with "."+c.
// "notshopify.com" must not match "shopify.com".
func DomainMatches(d, c string) bool {
	d = lowerASCII(d)
	c = lowerASCII(c)
	if d == "" || c == "" {
		return false
	}
	if d == c {
		return true
	}
	return len(d) > len(c)+1 && d[len(d)-len(c)-1] == '.' && d[len(d)-len(c):] == c
}

func lowerASCII(s string) string {
	hasUpper := false
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			hasUpper = true
			break
		}
	}
	if !hasUpper {
		return s
	}
	b := []byte(s)
	for i := 0; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}
