package morph

import (
	"strings"
	"unicode"
)

// MaskFunc applies content-aware masking to a string.
type MaskFunc func(value string) string

// MaskConverter adapts fn to a Converter over string values.
func MaskConverter(fn MaskFunc) Converter {
	return ConverterFunc(func(v any) (any, error) {
		b, ok, err := plaintext(v)
		if err != nil || !ok {
			return nil, err
		}
		return fn(string(b)), nil
	})
}

// MaskEmailAddress keeps the first character of the local part and the domain.
func MaskEmailAddress(value string) string {
	at := strings.LastIndex(value, "@")
	if at < 1 {
		return strings.Repeat("*", len(value))
	}
	return value[:1] + "***" + value[at:]
}

// MaskSocialSecurity keeps the last four digits.
func MaskSocialSecurity(value string) string {
	digits := extractDigits(value)
	if len(digits) < 4 {
		return strings.Repeat("*", len(value))
	}
	return "***-**-" + digits[len(digits)-4:]
}

// MaskPhoneNumber keeps the last four digits and the rough layout.
func MaskPhoneNumber(value string) string {
	digits := extractDigits(value)
	if len(digits) < 4 {
		return strings.Repeat("*", len(value))
	}
	last4 := digits[len(digits)-4:]
	switch {
	case strings.HasPrefix(value, "(") && len(digits) >= 10:
		return "(***) ***-" + last4
	case len(digits) >= 10:
		return "***-***-" + last4
	default:
		return "***-" + last4
	}
}

// MaskCardNumber keeps the last four digits, preserving space or dash grouping.
func MaskCardNumber(value string) string {
	digits := extractDigits(value)
	if len(digits) < 4 {
		return strings.Repeat("*", len(value))
	}
	last4 := digits[len(digits)-4:]

	sep := ""
	switch {
	case strings.Contains(value, " "):
		sep = " "
	case strings.Contains(value, "-"):
		sep = "-"
	}
	if sep == "" {
		return strings.Repeat("*", len(digits)-4) + last4
	}

	groups := make([]string, (len(digits)-4+3)/4)
	for i := range groups {
		groups[i] = "****"
	}
	return strings.Join(append(groups, last4), sep)
}

// MaskPersonName keeps the first letter of each word.
func MaskPersonName(value string) string {
	words := strings.Fields(value)
	for i, word := range words {
		runes := []rune(word)
		words[i] = string(runes[0]) + strings.Repeat("*", len(runes)-1)
	}
	return strings.Join(words, " ")
}

// MaskIPAddress keeps the network half of an IPv4 address.
// Anything else is masked entirely.
func MaskIPAddress(value string) string {
	if parts := strings.Split(value, "."); len(parts) == 4 {
		return parts[0] + "." + parts[1] + ".xxx.xxx"
	}
	return strings.Repeat("*", len(value))
}

func extractDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
