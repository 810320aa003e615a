package util

import "strings"

// RedactToken masks a bearer token (or any secret string) for safe logging,
// keeping only the first and last four characters.
// Example: "eyJ0eXAiOiJKV1QiLCJh..." -> "eyJ0***...Jh".
func RedactToken(token string) string {
	if len(token) < 12 {
		return "***"
	}
	return token[:4] + "***" + token[len(token)-4:]
}

// ScrubToken removes every occurrence of token from s, replacing it with
// "*****". Used before echoing error text that may include the raw request.
func ScrubToken(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "*****")
}
