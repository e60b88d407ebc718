package conversation

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Thread statuses.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// GenericTitle is the legacy untitled-thread marker. Threads carrying it
// (or a placeholder title, see placeholderTitle) are retitled from the
// first user message; anything else is treated as user-customized and
// never overwritten.
const GenericTitle = "New Conversation"

// titleMaxLen is the number of characters of message content used when
// auto-titling a thread.
const titleMaxLen = 50

// Thread is a conversation thread. message_count is maintained atomically
// alongside message inserts and always equals the number of messages.
type Thread struct {
	ID            uuid.UUID  `json:"id"`
	OwnerID       string     `json:"owner_id"`
	Title         string     `json:"title"`
	Platform      string     `json:"platform"`
	Status        string     `json:"status"`
	ProjectID     *uuid.UUID `json:"project_id,omitempty"`
	MessageCount  int        `json:"message_count"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
}

// Message is one immutable turn in a thread. Metadata is opaque to this
// core (model name, response time, knowledge sources, extracted
// preferences — whatever the generation layer records).
type Message struct {
	ID          uuid.UUID       `json:"id"`
	ThreadID    uuid.UUID       `json:"thread_id"`
	Role        string          `json:"role"`
	Content     string          `json:"content"`
	ContentType string          `json:"content_type"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ContextStats reports what AssembleContext selected.
type ContextStats struct {
	Messages        int `json:"messages"`
	EstimatedTokens int `json:"estimated_tokens"`
	TokenBudget     int `json:"token_budget"`
}

// placeholderTitleRe matches the timestamp-based default title written by
// CreateThread, e.g. "Conversation 2025-01-01 10:00".
var placeholderTitleRe = regexp.MustCompile(`^Conversation \d{4}-\d{2}-\d{2} \d{2}:\d{2}$`)

// placeholderTitle builds the default title for an untitled thread.
func placeholderTitle(t time.Time) string {
	return "Conversation " + t.Format("2006-01-02 15:04")
}

// isGenericTitle reports whether a title is still a system default and may
// be rewritten from message content.
func isGenericTitle(title string) bool {
	return title == GenericTitle || placeholderTitleRe.MatchString(title)
}

// deriveTitle produces a thread title from message content: the first 50
// characters, with "..." appended when truncated.
func deriveTitle(content string) string {
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) <= titleMaxLen {
		return content
	}
	return string(runes[:titleMaxLen]) + "..."
}
