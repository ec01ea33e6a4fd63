package validation_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrazmi/habitsync/sdk/validation"
)

func TestNormalizeDay(t *testing.T) {
	cases := map[string]string{
		"2026-10-19":                "2026-10-19",
		"Mon Oct 19 2026":           "2026-10-19",
		"Mon Oct 5 2026":            "2026-10-05",
		"2026-10-19T23:30:00Z":      "2026-10-19",
		"2026-10-19T23:30:00-07:00": "2026-10-19",
		"10/19/2026":                "2026-10-19",
		"2026/10/19":                "2026-10-19",
		"  2026-10-19 ":             "2026-10-19",
	}
	for in, want := range cases {
		got, err := validation.NormalizeDay(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestNormalizeDayRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "tomorrow", "2026-13-40", "Mon"} {
		_, err := validation.NormalizeDay(in)
		assert.Error(t, err, in)
	}
}

func TestParseWeekday(t *testing.T) {
	d, ok := validation.ParseWeekday("monday")
	require.True(t, ok)
	assert.Equal(t, time.Monday, d)

	d, ok = validation.ParseWeekday(" SAT ")
	require.True(t, ok)
	assert.Equal(t, time.Saturday, d)

	_, ok = validation.ParseWeekday("Funday")
	assert.False(t, ok)
	_, ok = validation.ParseWeekday("mo")
	assert.False(t, ok)
}

func TestMissingFields(t *testing.T) {
	assert.Equal(t, []string{"name", "date"},
		validation.MissingFields("habitId", "h1", "name", " ", "date", ""))
	assert.Nil(t, validation.MissingFields("habitId", "h1"))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "morning-routine", validation.Slugify("  Morning  Routine! "))
	assert.Equal(t, "cafe-creme", validation.Slugify("Café_Crème"))
}
