package webhooks

// Per-resource field allowlists. Every inbound payload's data object is
// filtered through one of these before it can reach a database write; keys not
// listed here are dropped silently. Keys map one-to-one to column names, so
// nothing dynamic ever reaches the persistence layer.

var leadFieldAllowlist = map[string]struct{}{
	"business_name":    {},
	"contact_name":     {},
	"email":            {},
	"phone":            {},
	"website":          {},
	"status":           {},
	"lead_score":       {},
	"lead_temperature": {},
	"lead_source":      {},
	"assigned_to":      {},
	"notes":            {},
}

var contactFieldAllowlist = map[string]struct{}{
	"business_id": {},
	"first_name":  {},
	"last_name":   {},
	"email":       {},
	"phone":       {},
	"position":    {},
}

var activityFieldAllowlist = map[string]struct{}{
	"business_id":   {},
	"activity_type": {},
	"description":   {},
	"metadata":      {},
}

// FilterFields returns a copy of data containing only allowlisted keys.
func FilterFields(data map[string]interface{}, allowlist map[string]struct{}) map[string]interface{} {
	filtered := make(map[string]interface{}, len(data))
	for key, value := range data {
		if _, ok := allowlist[key]; ok {
			filtered[key] = value
		}
	}
	return filtered
}
