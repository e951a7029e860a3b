package observability

import (
	"strings"
	"testing"
)

func TestScrubStripsControlCharacters(t *testing.T) {
	got := scrub("orders\n{orderID}\r\x00status", 0)
	if got != "orders{orderID}status" {
		t.Fatalf("expected control characters removed, got %q", got)
	}
}

func TestScrubTruncates(t *testing.T) {
	got := scrub(strings.Repeat("a", 300), 10)
	if got != strings.Repeat("a", 10) {
		t.Fatalf("expected value truncated to 10 chars, got %q", got)
	}
}

func TestScrubRouteDefaultsToRoot(t *testing.T) {
	if got := scrubRoute(""); got != "/" {
		t.Fatalf("expected empty route to map to /, got %q", got)
	}
	if got := scrubRoute("/api/v1/orders/{orderID}"); got != "/api/v1/orders/{orderID}" {
		t.Fatalf("expected route preserved, got %q", got)
	}
}

func TestScrubUIDCapsLength(t *testing.T) {
	uid := strings.Repeat("u", maxLoggedUID+40)
	if got := scrubUID(uid); len(got) != maxLoggedUID {
		t.Fatalf("expected uid capped at %d chars, got %d", maxLoggedUID, len(got))
	}
}
