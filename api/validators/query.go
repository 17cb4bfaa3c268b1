package validators

import (
	"net/http"
	"strconv"
	"strings"
	"unicode"

	pkgerrors "github.com/kicksnairobi/footwear-backend/pkg/errors"
)

func ParseQueryBool(r *http.Request, key string, defaultVal bool) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be a boolean").
			WithDetails(map[string]any{"field": key})
	}
	return value, nil
}

// SanitizeString trims, folds runs of whitespace, drops control characters
// and truncates to maxLen runes.
func SanitizeString(input string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(input))
	count, space := 0, false
	for _, r := range strings.TrimSpace(input) {
		if maxLen > 0 && count >= maxLen {
			break
		}
		switch {
		case unicode.IsSpace(r):
			space = true
			continue
		case unicode.IsControl(r):
			continue
		}
		if space && b.Len() > 0 {
			if maxLen > 0 && count+1 >= maxLen {
				break
			}
			b.WriteByte(' ')
			count++
		}
		space = false
		b.WriteRune(r)
		count++
	}
	return b.String()
}
