// Package validation holds small input-checking and pointer helpers shared
// by the core packages.
package validation

import (
	"strings"
	"time"
)

func StringPtr(s string) *string {
	return &s
}

func BoolPtr(b bool) *bool {
	return &b
}

func IntPtr(i int) *int {
	return &i
}

func TimePtr(t time.Time) *time.Time {
	return &t
}

// GetStringOrEmpty returns the string value or an empty string if nil.
func GetStringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// MissingFields returns the names whose values are blank, in argument order.
// Arguments alternate name, value.
//
//	MissingFields("habitId", ev.HabitID, "name", ev.Name)
func MissingFields(pairs ...string) []string {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			missing = append(missing, pairs[i])
		}
	}
	return missing
}
