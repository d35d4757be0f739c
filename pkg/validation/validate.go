package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/abdoulgee/skylinee/pkg/models"
)

// Rules bounds what an inbound message may carry. Zero values disable
// the corresponding check.
type Rules struct {
	MaxTextRunes int
	MaxURLLen    int
}

var rules = Rules{MaxTextRunes: 4000, MaxURLLen: 2048}

func SetRules(r Rules) {
	if r.MaxTextRunes > 0 {
		rules.MaxTextRunes = r.MaxTextRunes
	}
	if r.MaxURLLen > 0 {
		rules.MaxURLLen = r.MaxURLLen
	}
}

// ValidateMessage checks an inbound message before it is appended. Empty
// content is reported as ErrEmptyMessage so callers can treat it as a
// no-op rather than a fault.
func ValidateMessage(m models.Message) error {
	if strings.TrimSpace(m.Text) == "" && m.ImageURL == "" {
		return models.ErrEmptyMessage
	}
	if n := utf8.RuneCountInString(m.Text); rules.MaxTextRunes > 0 && n > rules.MaxTextRunes {
		return fmt.Errorf("text too long: %d runes, limit %d", n, rules.MaxTextRunes)
	}
	if rules.MaxURLLen > 0 && len(m.ImageURL) > rules.MaxURLLen {
		return fmt.Errorf("image url too long: %d bytes, limit %d", len(m.ImageURL), rules.MaxURLLen)
	}
	if m.ImageURL != "" && !strings.HasPrefix(m.ImageURL, "/") && !strings.HasPrefix(m.ImageURL, "http://") && !strings.HasPrefix(m.ImageURL, "https://") {
		return fmt.Errorf("image url must be absolute or server-relative")
	}
	return nil
}
