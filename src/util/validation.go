package util

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"budgee-ledger/src/models"
)

const MaxNameLength = 100

var spaceRun = regexp.MustCompile(`\s+`)

// CleanName trims a user supplied name and collapses inner whitespace.
func CleanName(name string) string {
	return spaceRun.ReplaceAllString(strings.TrimSpace(name), " ")
}

// ValidateName checks a cleaned envelope, group or goal name.
func ValidateName(name string) error {
	if name == "" {
		return errors.New("name is required")
	}
	if !utf8.ValidString(name) {
		return errors.New("name is not valid UTF-8")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return fmt.Errorf("name exceeds %d characters", MaxNameLength)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return errors.New("name contains control characters")
		}
	}
	return nil
}

// NormalizeCategory returns the envelope name a category label maps to.
// Blank labels fall back to "Needs a Category".
func NormalizeCategory(category string) (string, error) {
	name := CleanName(category)
	if name == "" {
		return models.DefaultCategoryName, nil
	}
	if err := ValidateName(name); err != nil {
		return "", fmt.Errorf("malformed category %q: %w", category, err)
	}
	return name, nil
}

func ValidateFlagColor(color string) bool {
	return color == "" || models.FlagColors[strings.ToLower(color)]
}
