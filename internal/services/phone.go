package services

import "strings"

// NormalizePhone turns a raw member phone into an international destination.
// It does not validate length or format; delivery is the real check.
func NormalizePhone(raw, countryCode string) string {
	phone := strings.TrimSpace(raw)
	if phone == "" {
		return ""
	}
	if strings.HasPrefix(phone, "+") {
		return phone
	}

	code := strings.TrimPrefix(strings.TrimSpace(countryCode), "+")
	if code == "" {
		return phone
	}
	if strings.HasPrefix(phone, code) {
		return phone
	}
	return "+" + code + phone
}
