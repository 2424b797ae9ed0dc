package utils

import (
	"strings"
	"unicode"

	"booktrack/pkg/models"
)

// NormalizeISBN strips hyphens and spaces
func NormalizeISBN(isbn string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, isbn)
}

// ValidateISBN accepts ISBN-10 (last char may be X) and ISBN-13 after
// normalization. Checksums are left to the catalog.
func ValidateISBN(isbn string) error {
	s := NormalizeISBN(isbn)
	switch len(s) {
	case 13:
		for _, r := range s {
			if r < '0' || r > '9' {
				return models.ErrInvalidInput
			}
		}
		return nil
	case 10:
		for i, r := range s {
			if r >= '0' && r <= '9' {
				continue
			}
			if i == 9 && (r == 'X' || r == 'x') {
				continue
			}
			return models.ErrInvalidInput
		}
		return nil
	}
	return models.ErrInvalidInput
}

// IsBlank reports whether s has no visible characters
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
