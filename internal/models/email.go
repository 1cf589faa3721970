package models

import "strings"

// NormalizeEmail lower-cases and trims an email address so lookups are case insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
