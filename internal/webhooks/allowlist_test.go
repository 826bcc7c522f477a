package webhooks

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterFields_DropsUnlistedKeys(t *testing.T) {
	data := map[string]interface{}{
		"business_name":  "Acme",
		"email":          "x@acme.test",
		"unknown_column": "payload injection",
		"user_id":        "someone-else", // tenant scoping must never come from the payload
		"id":             "lead-1",
	}

	filtered := FilterFields(data, leadFieldAllowlist)

	assert.Equal(t, map[string]interface{}{
		"business_name": "Acme",
		"email":         "x@acme.test",
	}, filtered)
}

func TestFilterFields_DoesNotMutateInput(t *testing.T) {
	data := map[string]interface{}{"business_name": "Acme", "evil": true}

	FilterFields(data, leadFieldAllowlist)

	assert.Len(t, data, 2)
}

func TestFilterFields_ContactAndActivityAllowlists(t *testing.T) {
	contact := FilterFields(map[string]interface{}{
		"business_id": "lead-1",
		"first_name":  "Ana",
		"website":     "ignored-for-contacts",
	}, contactFieldAllowlist)
	assert.Equal(t, map[string]interface{}{"business_id": "lead-1", "first_name": "Ana"}, contact)

	activity := FilterFields(map[string]interface{}{
		"business_id":   "lead-1",
		"activity_type": "call",
		"first_name":    "ignored-for-activities",
	}, activityFieldAllowlist)
	assert.Equal(t, map[string]interface{}{"business_id": "lead-1", "activity_type": "call"}, activity)
}
