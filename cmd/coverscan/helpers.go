package main

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// normalizeFlagTitle title-cases all-lowercase flag input so catalog queries
// match the casing the catalog stores. Mixed-case input is kept as typed.
func normalizeFlagTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || value != strings.ToLower(value) {
		return value
	}
	return cases.Title(language.English).String(value)
}

func formatScore(value float64) string {
	return strconv.FormatFloat(value, 'f', 2, 64)
}

func truncateText(value string, max int) string {
	if max <= 3 || len(value) <= max {
		return value
	}
	return value[:max-3] + "..."
}
