// Package mask hides personal data before it reaches logs.
package mask

import "strings"

// Phone keeps the last four characters and replaces the rest with '*'.
// Input shorter than five characters is fully masked.
func Phone(phone string) string {
	p := strings.TrimSpace(phone)
	if len(p) <= 4 {
		return strings.Repeat("*", len(p))
	}
	return strings.Repeat("*", len(p)-4) + p[len(p)-4:]
}
