package billing

import "strings"

// normalizeStatus folds any spelling of "active" to the canonical value.
// Every other provider status is kept as sent.
func normalizeStatus(status string) string {
	status = strings.TrimSpace(status)
	if strings.EqualFold(status, "active") {
		return "active"
	}
	return status
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
