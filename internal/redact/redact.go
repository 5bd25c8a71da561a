// Package redact removes secrets from archived task encodings and error text
// before they are logged or served by the admin API.
package redact

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Placeholder replaces every redacted value
const Placeholder = "[REDACTED]"

// sensitiveKey matches field names whose values are credentials
var sensitiveKey = regexp.MustCompile(`(?i)(token|secret|passw(or)?d|credential|private|auth|api[_-]?key)`)

// Free-text patterns, applied by String
var (
	dbConnRegex   = regexp.MustCompile(`(?i)(postgres(ql)?|sqlite|file)://[^@\s]+@`)
	keyValueRegex = regexp.MustCompile(
		`(?i)((?:token|secret|password|passwd|api[_-]?key|auth[a-z]*)"?\s*[:=]\s*"?)[A-Za-z0-9_\-.~+/=]{4,}`,
	)
	jwtTokenRegex = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`)
)

// Encoding returns encoding with the value of every secret-bearing field,
// at any depth, replaced by Placeholder. Text that is not JSON goes
// through String.
func Encoding(encoding string) string {
	if !gjson.Valid(encoding) {
		return String(encoding)
	}
	redacted := encoding
	for _, path := range sensitivePaths(gjson.Parse(encoding), "") {
		if updated, err := sjson.Set(redacted, path, Placeholder); err == nil {
			redacted = updated
		}
	}
	return redacted
}

// sensitivePaths lists the sjson paths of secret-bearing fields under value
func sensitivePaths(value gjson.Result, prefix string) []string {
	var paths []string
	isObject := value.IsObject()
	index := 0
	value.ForEach(func(key, field gjson.Result) bool {
		segment := strconv.Itoa(index)
		if isObject {
			segment = escapePathKey(key.String())
		}
		index++

		path := segment
		if prefix != "" {
			path = prefix + "." + segment
		}
		if isObject && sensitiveKey.MatchString(key.String()) {
			paths = append(paths, path)
			return true
		}
		if field.IsObject() || field.IsArray() {
			paths = append(paths, sensitivePaths(field, path)...)
		}
		return true
	})
	return paths
}

var pathEscaper = strings.NewReplacer(`\`, `\\`, ".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`)

func escapePathKey(key string) string {
	return pathEscaper.Replace(key)
}

// String redacts credentials from free text such as error messages
func String(input string) string {
	if input == "" {
		return input
	}
	result := dbConnRegex.ReplaceAllString(input, "${1}://"+Placeholder+"@")
	result = jwtTokenRegex.ReplaceAllString(result, Placeholder)
	return keyValueRegex.ReplaceAllString(result, "${1}"+Placeholder)
}

// Error redacts err's message, returning "" for nil
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
