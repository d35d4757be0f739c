package models

import (
	"errors"
	"testing"
)

func TestResolveParseRoundtrip(t *testing.T) {
	cases := []struct {
		kind Kind
		id   int64
		want string
	}{
		{KindBooking, 42, "booking-42"},
		{KindCampaign, 7, "campaign-7"},
		{KindBooking, 0, "booking-0"},
		{KindCampaign, 9007199254740993, "campaign-9007199254740993"},
	}
	for _, c := range cases {
		got := Resolve(c.kind, c.id)
		if got != c.want {
			t.Fatalf("Resolve(%s, %d) = %q, want %q", c.kind, c.id, got, c.want)
		}
		ref, err := ParseThreadID(got)
		if err != nil {
			t.Fatalf("ParseThreadID(%q) failed: %v", got, err)
		}
		if ref.Kind != c.kind || ref.ReferenceID != c.id {
			t.Fatalf("roundtrip mismatch: got %+v, want {%s %d}", ref, c.kind, c.id)
		}
	}
}

func TestParseThreadIDMalformed(t *testing.T) {
	bad := []string{
		"",
		"booking",
		"booking-",
		"-42",
		"booking-abc",
		"booking-12.5",
		"booking--3",
		"order-42",
		"campaign-42-extra",
		"BOOKING-42",
	}
	for _, s := range bad {
		if _, err := ParseThreadID(s); !errors.Is(err, ErrMalformedThreadID) {
			t.Fatalf("ParseThreadID(%q): expected ErrMalformedThreadID, got %v", s, err)
		}
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind("booking"); err != nil || k != KindBooking {
		t.Fatalf("ParseKind(booking) = %v, %v", k, err)
	}
	if k, err := ParseKind("campaign"); err != nil || k != KindCampaign {
		t.Fatalf("ParseKind(campaign) = %v, %v", k, err)
	}
	if _, err := ParseKind("wallet"); err == nil {
		t.Fatalf("ParseKind(wallet) should fail")
	}
}

func TestRoleOpponent(t *testing.T) {
	if RoleCustomer.Opponent() != RoleAgent || RoleAgent.Opponent() != RoleCustomer {
		t.Fatalf("Opponent mapping broken")
	}
}

func TestMessageEmpty(t *testing.T) {
	if !(Message{}).Empty() {
		t.Fatalf("zero message should be empty")
	}
	if (Message{Text: "hi"}).Empty() || (Message{ImageURL: "/uploads/x.png"}).Empty() {
		t.Fatalf("message with content reported empty")
	}
}
