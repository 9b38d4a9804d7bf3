package dispatch

import (
	"strings"

	"github.com/tidwall/gjson"
)

// minStringFieldLength is the cutoff for the last-resort field sniff: short
// string fields like {"status":"ok"} are not worth showing to a user.
const minStringFieldLength = 10

// extractor is one strategy for pulling a display string out of a backend
// response object.
type extractor struct {
	name string
	fn   func(gjson.Result) (string, bool)
}

// displayExtractors is the normalization precedence, tried in order until one
// matches. The ordering is a deliberate contract with the backend workflows;
// see the normalizer tests before reordering.
var displayExtractors = []extractor{
	{"results", extractResultsArray},
	{"output", fieldExtractor("output")},
	{"message", fieldExtractor("message")},
	{"response", fieldExtractor("response")},
	{"first_long_string", extractFirstLongString},
}

// Normalize maps an arbitrary backend response body to a display string.
// JSON objects go through the extractor chain, a bare JSON string unwraps to
// its value, and anything else (plain text, arrays, numbers) is returned
// verbatim. An unmatched object falls back to its raw serialized form.
func Normalize(body []byte) string {
	raw := strings.TrimSpace(string(body))
	if raw == "" || !gjson.Valid(raw) {
		return raw
	}

	parsed := gjson.Parse(raw)
	if parsed.Type == gjson.String {
		return parsed.String()
	}
	if !parsed.IsObject() {
		return raw
	}

	for _, e := range displayExtractors {
		if text, ok := e.fn(parsed); ok {
			return text
		}
	}
	return raw
}

// extractResultsArray handles the structured workflow output format
// {"results":[{"toolCallId":"...","result":"..."}]}.
func extractResultsArray(r gjson.Result) (string, bool) {
	results := r.Get("results")
	if !results.IsArray() {
		return "", false
	}
	arr := results.Array()
	if len(arr) == 0 {
		return "", false
	}
	first := arr[0].Get("result")
	if !first.Exists() {
		return "", false
	}
	return first.String(), true
}

// fieldExtractor matches a top-level string field with a non-empty value.
func fieldExtractor(field string) func(gjson.Result) (string, bool) {
	return func(r gjson.Result) (string, bool) {
		v := r.Get(field)
		if v.Type != gjson.String || v.String() == "" {
			return "", false
		}
		return v.String(), true
	}
}

// extractFirstLongString returns the first string-valued top-level property
// longer than minStringFieldLength, in document order.
func extractFirstLongString(r gjson.Result) (string, bool) {
	var out string
	r.ForEach(func(_, v gjson.Result) bool {
		if v.Type == gjson.String && len(v.String()) > minStringFieldLength {
			out = v.String()
			return false
		}
		return true
	})
	return out, out != ""
}
