// Package security scrubs the request and response payloads that the
// traced platform client writes to the log. Credentials and tokens are
// redacted outright; the base64 document body of an import call is
// elided down to its size so a burst of large invoices does not flood
// the log.
package security

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"
)

var sensitiveHeaders = map[string]bool{
	"authorization":       true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"proxy-authorization": true,
}

// Field names matched by substring against lowercased JSON keys. The
// platform login exchange carries password and token; the rest cover
// the usual credential shapes.
var sensitiveFields = []string{
	"password",
	"secret",
	"token",
	"key",
	"authorization",
	"api_key",
	"apikey",
	"access_token",
	"refresh_token",
	"client_secret",
	"private_key",
	"credential",
	"auth",
}

// Fields holding whole encoded documents. The import payload puts the
// base64 invoice under "content"; logging it verbatim is useless and
// expensive.
var bulkFields = map[string]bool{
	"content":    true,
	"attachment": true,
}

const redactedValue = "[REDACTED]"

// SanitizeHeaders returns a flat header map with sensitive values
// redacted and multi-valued headers joined.
func SanitizeHeaders(headers http.Header) map[string]string {
	sanitized := make(map[string]string, len(headers))
	for key, values := range headers {
		if sensitiveHeaders[strings.ToLower(key)] {
			sanitized[key] = redactedValue
		} else {
			sanitized[key] = strings.Join(values, ", ")
		}
	}
	return sanitized
}

// SanitizeBody prepares a request or response body for logging: gzip
// payloads are decompressed, binary payloads are wrapped as base64,
// oversized payloads are truncated to maxSize, and JSON payloads get
// their sensitive fields redacted and their bulk fields elided.
func SanitizeBody(body []byte, maxSize int) json.RawMessage {
	if len(body) == 0 {
		return nil
	}

	// gzip magic number 0x1f 0x8b
	if len(body) >= 2 && body[0] == 0x1f && body[1] == 0x8b {
		decompressed, err := decompressGzip(body)
		if err != nil {
			return wrapBinary(body, "gzip-compressed (decompression failed)")
		}
		body = decompressed
	}

	if !utf8.Valid(body) {
		return wrapBinary(body, "binary (non-UTF8)")
	}

	if maxSize > 0 && len(body) > maxSize {
		result, _ := json.Marshal(map[string]interface{}{
			"_truncated": true,
			"_size":      len(body),
			"_preview":   string(body[:maxSize]),
		})
		return json.RawMessage(result)
	}

	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return wrapText(body)
	}

	result, err := json.Marshal(sanitizeValue(data))
	if err != nil {
		return wrapText(body)
	}
	return json.RawMessage(result)
}

func decompressGzip(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

func wrapBinary(data []byte, format string) json.RawMessage {
	result, _ := json.Marshal(map[string]interface{}{
		"_binary": true,
		"_format": format,
		"_size":   len(data),
		"_base64": base64.StdEncoding.EncodeToString(data),
	})
	return json.RawMessage(result)
}

func wrapText(body []byte) json.RawMessage {
	result, _ := json.Marshal(map[string]interface{}{
		"_raw":    string(body),
		"_format": "text",
	})
	return json.RawMessage(result)
}

func sanitizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return sanitizeMap(val)
	case []interface{}:
		sanitized := make([]interface{}, len(val))
		for i, item := range val {
			sanitized[i] = sanitizeValue(item)
		}
		return sanitized
	default:
		return val
	}
}

func sanitizeMap(m map[string]interface{}) map[string]interface{} {
	sanitized := make(map[string]interface{}, len(m))
	for key, value := range m {
		lowerKey := strings.ToLower(key)

		if bulkFields[lowerKey] {
			if s, ok := value.(string); ok {
				sanitized[key] = fmt.Sprintf("[%d bytes elided]", len(s))
				continue
			}
		}

		if isSensitiveField(lowerKey) {
			sanitized[key] = redactedValue
			continue
		}

		sanitized[key] = sanitizeValue(value)
	}
	return sanitized
}

func isSensitiveField(lowerKey string) bool {
	for _, field := range sensitiveFields {
		if strings.Contains(lowerKey, field) {
			return true
		}
	}
	return false
}

// SanitizeURL redacts the values of sensitive query parameters.
func SanitizeURL(url string) string {
	lowerURL := strings.ToLower(url)
	for _, field := range sensitiveFields {
		if strings.Contains(lowerURL, field+"=") {
			url = redactQueryParam(url, field)
		}
	}
	return url
}

func redactQueryParam(url, param string) string {
	lowerURL := strings.ToLower(url)
	idx := strings.Index(lowerURL, strings.ToLower(param)+"=")
	if idx == -1 {
		return url
	}
	startIdx := idx + len(param) + 1
	endIdx := strings.IndexAny(url[startIdx:], "&")
	if endIdx == -1 {
		return url[:startIdx] + redactedValue
	}
	return url[:startIdx] + redactedValue + url[startIdx+endIdx:]
}
