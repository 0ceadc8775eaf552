package metrics

import (
	"fmt"
	"strings"
	"unicode"
)

// friendlyAliases are keyed by type name without the pointer star.
var friendlyAliases = map[string]string{
	"kv.ConnectError":               "Connection failed",
	"bench.WorkerError":             "Worker failed",
	"net.OpError":                   "Network error",
	"proto.RedisError":              "Server error reply",
	"errors.errorString":            "Error",
	"context.deadlineExceededError": "Context deadline exceeded",
	"context.deadlineExceeded":      "Context deadline exceeded",
}

// FriendlyErrorName turns a %T error type name, as recorded by the
// Collector, into a short label for reports and the dashboard.
func FriendlyErrorName(typeName string) string {
	name := strings.TrimPrefix(strings.TrimSpace(typeName), "*")
	if name == "" {
		return "Unknown error"
	}
	if alias, ok := friendlyAliases[name]; ok {
		return alias
	}
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}

	pkg, typ, found := strings.Cut(name, ".")
	if !found {
		pkg, typ = "", name
	}
	pretty := strings.Join(splitCamel(typ), " ")
	if pretty == "" {
		pretty = typ
	}

	lowered := strings.ToLower(pretty)
	switch strings.ToLower(pkg) {
	case "context":
		if strings.Contains(lowered, "deadline") {
			return "Context deadline exceeded"
		}
	case "kv":
		if strings.Contains(lowered, "connect") {
			return "Connection failed"
		}
	case "net":
		if strings.Contains(lowered, "error") {
			return "Network error"
		}
	}

	if pkg == "" || pkg == "main" {
		return pretty
	}
	return fmt.Sprintf("%s (%s)", pretty, pkg)
}

// splitCamel splits an identifier at case and digit boundaries, keeping
// acronyms such as HTTP together: "HTTPTimeout" -> ["HTTP", "Timeout"].
func splitCamel(s string) []string {
	runes := []rune(s)
	var words []string
	start := 0
	for i := 1; i < len(runes); i++ {
		prev, cur := runes[i-1], runes[i]
		lowerToUpper := unicode.IsLower(prev) && unicode.IsUpper(cur)
		acronymEnd := unicode.IsUpper(prev) && unicode.IsUpper(cur) && i+1 < len(runes) && unicode.IsLower(runes[i+1])
		digitStart := unicode.IsDigit(cur) && !unicode.IsDigit(prev)
		if lowerToUpper || acronymEnd || digitStart {
			words = append(words, titleWord(string(runes[start:i])))
			start = i
		}
	}
	if start < len(runes) {
		words = append(words, titleWord(string(runes[start:])))
	}
	return words
}

func titleWord(w string) string {
	hasLower := strings.IndexFunc(w, unicode.IsLower) >= 0
	hasLetter := strings.IndexFunc(w, unicode.IsLetter) >= 0
	if hasLetter && !hasLower {
		return w
	}
	runes := []rune(strings.ToLower(w))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
