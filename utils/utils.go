package utils

import (
	"strings"

	"coldreach/models"
)

// Pointer returns a pointer to the given value
func Pointer[T any](v T) *T {
	return &v
}

// TemplateVars builds the variable source for a lead: identity fields first,
// then the free-form metadata bag (metadata wins on key collisions).
func TemplateVars(lead *models.Lead) map[string]string {
	vars := map[string]string{
		"email":     lead.Email,
		"firstName": lead.FirstName,
		"lastName":  lead.LastName,
		"company":   lead.Company,
		"jobTitle":  lead.JobTitle,
		"website":   lead.Website,
		"location":  lead.Location,
	}
	for key, value := range lead.Metadata {
		vars[key] = value
	}
	return vars
}

// NormalizeEmail lowercases and trims an address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
