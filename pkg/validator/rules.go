package validator

import (
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"unicode/utf8"
)

// Required validates that a string is not empty after trimming whitespace.
func Required(field, value string) Rule {
	return newRule(field, "validation.required", "field is required", nil, func() bool {
		return strings.TrimSpace(value) != ""
	})
}

// MinLen validates the rune length of a string.
func MinLen(field, value string, min int) Rule {
	return newRule(field, "validation.min_length",
		fmt.Sprintf("must be at least %d characters long", min),
		map[string]any{"min": min},
		func() bool { return utf8.RuneCountInString(value) >= min },
	)
}

// MaxLen validates the rune length of a string.
func MaxLen(field, value string, max int) Rule {
	return newRule(field, "validation.max_length",
		fmt.Sprintf("must be at most %d characters long", max),
		map[string]any{"max": max},
		func() bool { return utf8.RuneCountInString(value) <= max },
	)
}

// ValidEmail validates an address with net/mail plus a dotted domain.
func ValidEmail(field, value string) Rule {
	return newRule(field, "validation.email", "must be a valid email address", nil, func() bool {
		if strings.TrimSpace(value) == "" {
			return false
		}
		addr, err := mail.ParseAddress(value)
		if err != nil || addr.Address != value {
			return false
		}
		local, domain, ok := strings.Cut(addr.Address, "@")
		if !ok || local == "" {
			return false
		}
		if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
			return false
		}
		return !strings.Contains(domain, "..")
	})
}

// OneOf validates that value is among allowed.
func OneOf[T comparable](field string, value T, allowed []T) Rule {
	return newRule(field, "validation.in_list",
		fmt.Sprintf("must be one of: %v", allowed),
		map[string]any{"allowed_values": allowed},
		func() bool { return slices.Contains(allowed, value) },
	)
}

// Min validates that a numeric value is greater than or equal to min.
func Min[T Numeric](field string, value, min T) Rule {
	return newRule(field, "validation.min",
		fmt.Sprintf("must be at least %v", min),
		map[string]any{"min": min},
		func() bool { return value >= min },
	)
}

// Max validates that a numeric value is less than or equal to max.
func Max[T Numeric](field string, value, max T) Rule {
	return newRule(field, "validation.max",
		fmt.Sprintf("must be at most %v", max),
		map[string]any{"max": max},
		func() bool { return value <= max },
	)
}

// NotEmpty validates that a slice has at least one element.
func NotEmpty[T any](field string, value []T) Rule {
	return newRule(field, "validation.required", "field is required", nil, func() bool {
		return len(value) > 0
	})
}
