package models

import "fmt"

// Role is the party a message is attributed to. Individual operator
// identities are never exposed; the counterpart always sees "agent".
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
)

// ParseRole validates a role string against the closed set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleCustomer:
		return RoleCustomer, nil
	case RoleAgent:
		return RoleAgent, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Opponent returns the role on the other side of a thread.
func (r Role) Opponent() Role {
	if r == RoleCustomer {
		return RoleAgent
	}
	return RoleCustomer
}

// Message is one entry of a thread's append-only log. ID is assigned by the
// server and is monotonically increasing within a thread; it is the total
// order clients must sort by. CreatedAt (unix nanos) is server-assigned and
// never trusted from clients. Messages are immutable once created.
type Message struct {
	ID         int64  `json:"id"`
	ThreadID   string `json:"threadId"`
	SenderRole Role   `json:"senderRole"`
	Text       string `json:"text,omitempty"`
	ImageURL   string `json:"imageUrl,omitempty"`
	CreatedAt  int64  `json:"createdAt"`
}

// Empty reports whether the message carries neither text nor an image.
func (m Message) Empty() bool {
	return m.Text == "" && m.ImageURL == ""
}
