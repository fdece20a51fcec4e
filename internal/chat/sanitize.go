package chat

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	// MaxContentLength caps a single turn's content.
	MaxContentLength = 2000
	// MaxTurns caps the conversation window forwarded upstream; older
	// turns are dropped first.
	MaxTurns = 20
	// MaxDisplayNameLength caps the advisory display name.
	MaxDisplayNameLength = 80
)

// ValidationError describes a rejected chat payload. It maps to a 422.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Validate checks the claimed payload against the schema: a non-empty message
// list, roles from the three-value enum, and bounded content lengths.
func (p *Payload) Validate() error {
	if len(p.Messages) == 0 {
		return validationErrorf("messages must not be empty")
	}
	for i, turn := range p.Messages {
		if !turn.Role.Valid() {
			return validationErrorf("messages[%d].role %q is not one of system, user, assistant", i, turn.Role)
		}
		if len(turn.Content) > MaxContentLength {
			return validationErrorf("messages[%d].content exceeds %d characters", i, MaxContentLength)
		}
	}
	if p.Metadata != nil {
		if len(strings.TrimSpace(p.Metadata.DisplayName)) > MaxDisplayNameLength {
			return validationErrorf("metadata.displayName exceeds %d characters", MaxDisplayNameLength)
		}
	}
	return nil
}

// SanitizeTurns clamps the list to the most recent MaxTurns entries, strips
// control characters from each turn's content and trims surrounding
// whitespace. The result is the only representation passed downstream.
func SanitizeTurns(turns []Turn) []Turn {
	clamped := turns
	if len(clamped) > MaxTurns {
		clamped = clamped[len(clamped)-MaxTurns:]
	}
	sanitized := make([]Turn, len(clamped))
	for i, turn := range clamped {
		sanitized[i] = Turn{
			Role:    turn.Role,
			Content: SanitizeContent(turn.Content),
		}
	}
	return sanitized
}

// SanitizeContent removes control characters (Unicode categories Cc and Cf)
// and trims surrounding whitespace.
func SanitizeContent(value string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.In(r, unicode.Cc, unicode.Cf) {
			return -1
		}
		return r
	}, value)
	return strings.TrimSpace(cleaned)
}

// LatestUserTurn returns the most recent user turn and its index.
func LatestUserTurn(turns []Turn) (Turn, int, bool) {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == RoleUser {
			return turns[i], i, true
		}
	}
	return Turn{}, -1, false
}
