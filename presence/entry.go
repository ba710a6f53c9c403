package presence

import (
	"strconv"
	"strings"

	"github.com/srinivas112004/go-employee-portal/internal/utils"
)

// Entry is one online user. Identity is keyed by the first non-null of
// the recognised id fields; unrecognised fields are kept in FreeForm.
type Entry struct {
	ID          string
	DisplayName string
	FreeForm    map[string]any
}

var idKeys = []string{"user_id", "id", "pk", "_id"}

// entryFromLoose builds an Entry from a loose server map. Returns false
// when no recognised id field is present.
func entryFromLoose(user map[string]any) (Entry, bool) {
	var id string
	for _, key := range idKeys {
		if id = scalarString(user[key]); id != "" {
			break
		}
	}
	if id == "" {
		return Entry{}, false
	}
	return Entry{
		ID:          id,
		DisplayName: displayName(user, id),
		FreeForm:    user,
	}, true
}

// displayName resolves a readable name: full_name, username, the email
// local-part, then a generic fallback.
func displayName(user map[string]any, id string) string {
	name := utils.FirstNonEmpty(stringField(user, "full_name"), stringField(user, "username"))
	if name != "" {
		return name
	}
	if email := stringField(user, "email"); email != "" {
		if at := strings.Index(email, "@"); at > 0 {
			return email[:at]
		}
		return email
	}
	return "User " + id
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	}
	return ""
}
