package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the transaction a thread belongs to. It is the tag half
// of the thread identity; the reference id is the other half.
type Kind string

const (
	KindBooking  Kind = "booking"
	KindCampaign Kind = "campaign"
)

// ParseKind validates a kind string against the closed set.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindBooking:
		return KindBooking, nil
	case KindCampaign:
		return KindCampaign, nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrMalformedThreadID, s)
}

// ThreadRef is the identity of a thread: the owning transaction's kind and
// record id. Threads are never stored; a ref is resolvable as soon as the
// transaction exists.
type ThreadRef struct {
	Kind        Kind  `json:"kind"`
	ReferenceID int64 `json:"referenceId"`
}

// ThreadID returns the canonical string identity "{kind}-{referenceId}".
func (r ThreadRef) ThreadID() string {
	return string(r.Kind) + "-" + strconv.FormatInt(r.ReferenceID, 10)
}

// Resolve derives the canonical thread id for a (kind, referenceId) pair.
// Total and pure; two distinct transactions can never collide because the
// kind tag is part of the encoding.
func Resolve(kind Kind, referenceID int64) string {
	return ThreadRef{Kind: kind, ReferenceID: referenceID}.ThreadID()
}

// ParseThreadID is the exact inverse of Resolve. It fails with
// ErrMalformedThreadID unless the input matches "{kind}-{integer}" with a
// known kind.
func ParseThreadID(id string) (ThreadRef, error) {
	i := strings.LastIndexByte(id, '-')
	if i <= 0 || i == len(id)-1 {
		return ThreadRef{}, fmt.Errorf("%w: %q", ErrMalformedThreadID, id)
	}
	kind, err := ParseKind(id[:i])
	if err != nil {
		return ThreadRef{}, fmt.Errorf("%w: %q", ErrMalformedThreadID, id)
	}
	ref, err := strconv.ParseInt(id[i+1:], 10, 64)
	if err != nil || ref < 0 {
		return ThreadRef{}, fmt.Errorf("%w: %q", ErrMalformedThreadID, id)
	}
	return ThreadRef{Kind: kind, ReferenceID: ref}, nil
}

// Counterpart is the display snapshot of the party on the other side of a
// thread, joined from the transaction record at read time.
type Counterpart struct {
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// ThreadSummary is a directory entry: a read-only projection recomputed on
// every directory fetch, never persisted.
type ThreadSummary struct {
	ThreadID    string      `json:"threadId"`
	Kind        Kind        `json:"kind"`
	ReferenceID int64       `json:"referenceId"`
	LastMessage *Message    `json:"lastMessage"`
	Counterpart Counterpart `json:"counterpart"`
	// CustomerName is populated for agent actors only; customers see a
	// single persona and never other customers.
	CustomerName string `json:"customerName,omitempty"`
	Unread       int    `json:"unread"`
	// CreatedAt is the owning transaction's creation time (unix nanos),
	// used to order threads that have no message yet.
	CreatedAt int64 `json:"createdAt"`
}
