package pagination

import (
	"encoding/base64"
	"testing"
)

func TestNormalizeLimit(t *testing.T) {
	cases := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "zero uses default", limit: 0, want: DefaultLimit},
		{name: "negative uses default", limit: -5, want: DefaultLimit},
		{name: "within bounds", limit: 10, want: 10},
		{name: "above max capped", limit: 5000, want: MaxLimit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeLimit(tc.limit); got != tc.want {
				t.Fatalf("NormalizeLimit(%d) = %d, want %d", tc.limit, got, tc.want)
			}
		})
	}
}

func TestCursorRoundTrip(t *testing.T) {
	encoded := EncodeCursor(Cursor{Sequence: 42})
	parsed, err := ParseCursor(encoded)
	if err != nil {
		t.Fatalf("ParseCursor: %v", err)
	}
	if parsed == nil || parsed.Sequence != 42 {
		t.Fatalf("got %+v, want sequence 42", parsed)
	}
}

func TestParseCursorEmpty(t *testing.T) {
	parsed, err := ParseCursor("   ")
	if err != nil {
		t.Fatalf("blank cursor should not error: %v", err)
	}
	if parsed != nil {
		t.Fatalf("blank cursor should parse to nil, got %+v", parsed)
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	if _, err := ParseCursor("!!!not-base64!!!"); err == nil {
		t.Fatal("expected error for invalid base64")
	}
	bad := base64.StdEncoding.EncodeToString([]byte("seq|-3"))
	if _, err := ParseCursor(bad); err == nil {
		t.Fatal("expected error for negative sequence")
	}
	wrongPrefix := base64.StdEncoding.EncodeToString([]byte("id|42"))
	if _, err := ParseCursor(wrongPrefix); err == nil {
		t.Fatal("expected error for unknown cursor prefix")
	}
}

func TestLimitWithBuffer(t *testing.T) {
	if got := LimitWithBuffer(10); got != 11 {
		t.Fatalf("LimitWithBuffer(10) = %d, want 11", got)
	}
}
