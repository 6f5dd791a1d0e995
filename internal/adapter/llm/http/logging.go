package http

import "fmt"

// maxLoggedResponseLength caps how much of a model response reaches logs.
// Responses carry user source code; log aggregators should not get all of it.
const maxLoggedResponseLength = 200

// TruncateForLogging shortens a response for safe logging, appending the
// original length when truncation happened.
func TruncateForLogging(response string) string {
	if len(response) <= maxLoggedResponseLength {
		return response
	}
	return response[:maxLoggedResponseLength] + fmt.Sprintf("... [truncated, total length=%d bytes]", len(response))
}

// RedactAPIKey keeps only the last four characters of a key for log output.
func RedactAPIKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
