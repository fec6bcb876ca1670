package extract

import (
	"bytes"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"budget-tracker-backend/internal/dateparse"
)

// Record is one transaction candidate. Fields are kept as decoded so that
// anything beyond date, amount and description survives unchanged.
type Record map[string]any

var (
	leadingFence  = regexp.MustCompile("^```[a-zA-Z]*\\s*")
	trailingFence = regexp.MustCompile("\\s*```$")
)

// stripFences removes a markdown code fence wrapped around model output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = leadingFence.ReplaceAllString(s, "")
	s = trailingFence.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// decodeRecords accepts a top-level array of objects or an object with a
// "transactions" array.
func decodeRecords(data []byte) ([]Record, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}

	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case map[string]any:
		list, ok := v["transactions"].([]any)
		if !ok {
			return nil, false
		}
		items = list
	default:
		return nil, false
	}

	records := make([]Record, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		records = append(records, Record(obj))
	}
	return records, true
}

// parseModelOutput decodes a model reply into records.
func parseModelOutput(reply string) ([]Record, error) {
	records, ok := decodeRecords([]byte(stripFences(reply)))
	if !ok {
		return nil, newError(KindMalformedModelOutput, http.StatusBadGateway, nil,
			"AI response was not a JSON array of transactions")
	}
	return records, nil
}

// normalizeDates rewrites every string date field to YYYY-MM-DD where it
// can be parsed.
func normalizeDates(records []Record) {
	for _, r := range records {
		if s, ok := r["date"].(string); ok {
			r["date"] = dateparse.Normalize(s)
		}
	}
}
