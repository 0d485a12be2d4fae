// Package validation checks user-supplied free text before it reaches storage.
package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxMessageLength    = 5000
	MaxReportReason     = 1000
	MinReportReason     = 3
	MaxReviewLength     = 2000
	MaxAdminNoteLength  = 2000
	MaxBuyerNameLength  = 120
	MaxActionReasonSize = 1000
)

func checkLength(field, value string, minLen, maxLen int) error {
	n := utf8.RuneCountInString(value)
	if n < minLen {
		if minLen == 1 {
			return fmt.Errorf("%s is required", field)
		}
		return fmt.Errorf("%s must be at least %d characters", field, minLen)
	}
	if n > maxLen {
		return fmt.Errorf("%s must be at most %d characters", field, maxLen)
	}
	if !utf8.ValidString(value) {
		return fmt.Errorf("%s must be valid UTF-8", field)
	}
	return nil
}

// MessageContent trims and validates a chat message body.
func MessageContent(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	return content, checkLength("message", content, 1, MaxMessageLength)
}

// ReportReason trims and validates the reason given for a report.
func ReportReason(raw string) (string, error) {
	reason := strings.TrimSpace(raw)
	return reason, checkLength("reason", reason, MinReportReason, MaxReportReason)
}

// ReviewText trims an optional review. Blank text becomes nil.
func ReviewText(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	text := strings.TrimSpace(*raw)
	if text == "" {
		return nil, nil
	}
	if err := checkLength("review", text, 1, MaxReviewLength); err != nil {
		return nil, err
	}
	return &text, nil
}

// Stars validates a rating value.
func Stars(stars int) error {
	if stars < 1 || stars > 5 {
		return fmt.Errorf("stars must be between 1 and 5")
	}
	return nil
}

// AdminNote trims an optional moderator note.
func AdminNote(raw string) (string, error) {
	note := strings.TrimSpace(raw)
	return note, checkLength("note", note, 0, MaxAdminNoteLength)
}

// ActionReason trims an optional moderation action reason.
func ActionReason(raw string) (string, error) {
	reason := strings.TrimSpace(raw)
	return reason, checkLength("reason", reason, 0, MaxActionReasonSize)
}

// BuyerName trims the free-text name of an off-platform buyer.
func BuyerName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	return name, checkLength("buyer name", name, 0, MaxBuyerNameLength)
}
