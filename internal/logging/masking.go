// Package logging provides utilities for secure logging with data masking.
package logging

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MaskHeader redacts sensitive header values based on header name.
// Returns the redacted value suitable for logging.
//
// Rules:
// - The bypass header and anything secret-like: "[REDACTED]" (no partial reveal)
// - Token/API key headers: "****" + last4chars (e.g., "****ab3f")
// - Other headers: returned unchanged
func MaskHeader(name, value string) string {
	lowerName := strings.ToLower(name)

	if lowerName == "x-botgate-bypass" ||
		strings.Contains(lowerName, "secret") ||
		strings.Contains(lowerName, "password") {
		return "[REDACTED]"
	}

	if lowerName == "authorization" ||
		lowerName == "accesskey" ||
		lowerName == "x-api-key" {
		if len(value) < 4 {
			return "****"
		}
		return "****" + value[len(value)-4:]
	}

	return value
}

// MaskJSONBody redacts non-allowlisted fields in a JSON body.
// Uses an allowlist approach: if allowlist is nil everything passes through,
// otherwise only listed fields keep their values and every other primitive
// becomes "[REDACTED]". Returns the original bytes when parsing fails.
func MaskJSONBody(body []byte, allowlist []string) []byte {
	if allowlist == nil || len(body) == 0 {
		return body
	}

	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return body
	}

	allowed := make(map[string]bool, len(allowlist))
	for _, field := range allowlist {
		allowed[field] = true
	}

	masked := maskJSONValue(data, allowed)

	result, err := json.Marshal(masked)
	if err != nil {
		return body
	}
	return result
}

func maskJSONValue(value interface{}, allowed map[string]bool) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{})
		for key, val := range v {
			if allowed[key] {
				result[key] = maskJSONValue(val, allowed)
				continue
			}
			switch val.(type) {
			case map[string]interface{}, []interface{}:
				result[key] = maskJSONValue(val, allowed)
			default:
				result[key] = "[REDACTED]"
			}
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, item := range v {
			result[i] = maskJSONValue(item, allowed)
		}
		return result
	default:
		return value
	}
}

// FormatBinaryData formats binary data for logging as a size indicator.
func FormatBinaryData(data []byte) string {
	return fmt.Sprintf("[BINARY: %d bytes]", len(data))
}
