package session

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Identity is the authenticated user's profile as known to the client.
// Unrecognised profile fields are preserved verbatim in FreeForm so the
// client tolerates server-side shape drift.
type Identity struct {
	ID               int64
	Email            string
	FullName         string
	Role             string
	EmailVerified    bool
	TwoFactorEnabled bool
	FreeForm         map[string]any
}

func (i *Identity) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	out := Identity{FreeForm: make(map[string]any)}

	// Alternate keys resolve in a fixed priority order, independent of
	// map iteration order.
	for _, key := range []string{"id", "pk", "user_id"} {
		if out.ID == 0 {
			out.ID = asInt64(raw[key])
		}
	}
	for _, key := range []string{"full_name", "name"} {
		if out.FullName == "" {
			out.FullName, _ = raw[key].(string)
		}
	}

	for key, value := range raw {
		switch key {
		case "id", "pk", "user_id", "full_name", "name":
		case "email":
			out.Email, _ = value.(string)
		case "role":
			out.Role, _ = value.(string)
		case "email_verified", "is_email_verified":
			out.EmailVerified = asBool(value) || out.EmailVerified
		case "two_factor_enabled", "is_2fa_enabled":
			out.TwoFactorEnabled = asBool(value) || out.TwoFactorEnabled
		default:
			out.FreeForm[key] = value
		}
	}

	*i = out
	return nil
}

// HasRole reports whether the identity's role is in the allowed set.
// Comparison is case-insensitive; an unknown role never matches.
func (i *Identity) HasRole(allowed ...string) bool {
	role := strings.ToLower(strings.TrimSpace(i.Role))
	if role == "" {
		return false
	}
	for _, a := range allowed {
		if role == strings.ToLower(strings.TrimSpace(a)) {
			return true
		}
	}
	return false
}

func asInt64(v any) int64 {
	switch val := v.(type) {
	case float64:
		return int64(val)
	case string:
		n, _ := strconv.ParseInt(val, 10, 64)
		return n
	}
	return 0
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}
