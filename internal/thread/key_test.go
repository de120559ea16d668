package thread

import (
	"errors"
	"testing"
)

func TestResolveCommutative(t *testing.T) {
	cases := []struct {
		name string
		a, b string
		want string
	}{
		{"ordered pair", "u1", "u2", "u1__u2"},
		{"reversed pair", "u2", "u1", "u1__u2"},
		{"lexicographic not numeric", "u10", "u2", "u10__u2"},
		{"uuid-ish ids", "b7f3", "a1c9", "a1c9__b7f3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Resolve(tc.a, tc.b)
			if err != nil {
				t.Fatalf("Resolve(%q, %q) error = %v", tc.a, tc.b, err)
			}
			if got != tc.want {
				t.Errorf("Resolve(%q, %q) = %q, want %q", tc.a, tc.b, got, tc.want)
			}
			rev, err := Resolve(tc.b, tc.a)
			if err != nil {
				t.Fatalf("Resolve(%q, %q) error = %v", tc.b, tc.a, err)
			}
			if rev != got {
				t.Errorf("Resolve not commutative: %q vs %q", got, rev)
			}
		})
	}
}

func TestResolveInvalid(t *testing.T) {
	cases := []struct {
		name string
		a, b string
	}{
		{"self thread", "u1", "u1"},
		{"empty first", "", "u2"},
		{"empty second", "u1", ""},
		{"both empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Resolve(tc.a, tc.b); !errors.Is(err, ErrInvalidParticipants) {
				t.Errorf("Resolve(%q, %q) error = %v, want ErrInvalidParticipants", tc.a, tc.b, err)
			}
		})
	}
}

func TestParticipants(t *testing.T) {
	key, err := Resolve("u9", "u3")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	a, b, ok := Participants(key)
	if !ok || a != "u3" || b != "u9" {
		t.Errorf("Participants(%q) = %q, %q, %v", key, a, b, ok)
	}
	if _, _, ok := Participants("garbage"); ok {
		t.Error("Participants should reject a key without separator")
	}
}
