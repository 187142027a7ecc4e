package referral

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// NormalizeID returns the canonical key for a member identifier that may
// arrive as a JSON number or a JSON string. It reports ok == false when v is
// nil, meaning the value carries no identity at all.
//
// Every registry lookup and every id comparison in this package goes through
// NormalizeID, so 34, 34.0, json.Number("34") and "34" all map to "34".
func NormalizeID(v any) (key string, ok bool) {
	switch id := v.(type) {
	case nil:
		return "", false
	case string:
		return id, true
	case json.Number:
		if f, err := id.Float64(); err == nil && !isIntegralLiteral(string(id)) {
			return strconv.FormatFloat(f, 'f', -1, 64), true
		}
		return string(id), true
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(id), 'f', -1, 32), true
	case int:
		return strconv.Itoa(id), true
	case int64:
		return strconv.FormatInt(id, 10), true
	case int32:
		return strconv.FormatInt(int64(id), 10), true
	case uint:
		return strconv.FormatUint(uint64(id), 10), true
	case uint64:
		return strconv.FormatUint(id, 10), true
	case uint32:
		return strconv.FormatUint(uint64(id), 10), true
	case fmt.Stringer:
		return id.String(), true
	default:
		return fmt.Sprint(id), true
	}
}

// hasIdentity reports whether v names a member. Absent ids, empty strings
// and numeric zero are treated as "no member" by the upstream API.
func hasIdentity(v any) bool {
	key, ok := NormalizeID(v)
	if !ok || key == "" {
		return false
	}
	switch v.(type) {
	case string:
		return true
	}
	return key != "0"
}

// isIntegralLiteral reports whether s is a plain base-10 integer literal.
// Such literals are kept verbatim so large ids survive without float rounding.
func isIntegralLiteral(s string) bool {
	if s == "" {
		return false
	}
	start := 0
	if s[0] == '-' {
		start = 1
	}
	if start == len(s) {
		return false
	}
	for i := start; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
