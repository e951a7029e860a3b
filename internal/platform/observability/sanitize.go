package observability

import "strings"

// Length caps sized to what this API actually logs: chi route patterns like
// /api/v1/orders/{orderID}/status, HTTP methods, Firebase UIDs (128 chars max)
// and ord_-prefixed ULIDs.
const (
	maxLoggedRoute  = 160
	maxLoggedMethod = 8
	maxLoggedUID    = 128
)

// scrub drops control characters and truncates so a hostile value cannot
// inject extra log lines.
func scrub(value string, limit int) string {
	cleaned := strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, value)
	if limit > 0 && len(cleaned) > limit {
		cleaned = cleaned[:limit]
	}
	return cleaned
}

func scrubRoute(route string) string {
	if route == "" {
		return "/"
	}
	return scrub(route, maxLoggedRoute)
}

func scrubMethod(method string) string {
	return scrub(method, maxLoggedMethod)
}

func scrubUID(uid string) string {
	return scrub(uid, maxLoggedUID)
}
