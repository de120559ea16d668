// Package thread derives canonical identifiers for two-party conversations.
package thread

import (
	"errors"
	"strings"
)

// Sep joins the two participant ids inside a thread key.
const Sep = "__"

var ErrInvalidParticipants = errors.New("invalid thread participants")

// Resolve returns the canonical key for the conversation between two users.
// The key is order-independent: Resolve(a, b) == Resolve(b, a), so either
// participant can open or message the thread without a discovery round-trip.
// Fails when the users are equal or either id is empty.
func Resolve(userA, userB string) (string, error) {
	if userA == "" || userB == "" || userA == userB {
		return "", ErrInvalidParticipants
	}
	if userA > userB {
		userA, userB = userB, userA
	}
	return userA + Sep + userB, nil
}

// Participants splits a thread key back into its two user ids.
func Participants(key string) (string, string, bool) {
	a, b, ok := strings.Cut(key, Sep)
	if !ok || a == "" || b == "" {
		return "", "", false
	}
	return a, b, true
}
