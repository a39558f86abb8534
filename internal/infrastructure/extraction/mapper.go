package extraction

import (
	"encoding/json"
	"errors"
	"slices"
	"strconv"
	"strings"

	"github.com/draftlens/backend/internal/domain"
)

const (
	// defaultFieldConfidence is assumed when a provider omits a confidence
	defaultFieldConfidence = 0.7
	legacyFieldConfidence  = 0.5

	reasonNotReturned      = "not returned by provider"
	reasonUnparseable      = "provider value could not be parsed"
	warningLegacyFallback  = "legacy_contract_fallback"
	errorMalformedResponse = "malformed_provider_response"
)

var errMissingFields = errors.New("response has no fields object")

// WireField is one field of the field-map contract
type WireField struct {
	Value      json.RawMessage `json:"value"`
	Source     string          `json:"source,omitempty"`
	Confidence *float64        `json:"confidence,omitempty"`
	Reason     string          `json:"reason,omitempty"`
}

// FieldMapResponse is the body returned by field-map backends
type FieldMapResponse struct {
	Fields   map[string]WireField `json:"fields"`
	Warnings []string             `json:"warnings,omitempty"`
	Errors   []string             `json:"errors,omitempty"`
}

// ParseFieldMap decodes a field-map body. A body without a "fields" object
// is malformed.
func ParseFieldMap(body []byte) (*FieldMapResponse, error) {
	var resp FieldMapResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.Fields == nil {
		return nil, errMissingFields
	}
	return &resp, nil
}

// MapFieldMap converts a field-map response into an extraction result.
// Absent or empty fields come back with Found=false; confidences are clamped.
func MapFieldMap(resp *FieldMapResponse) *domain.ExtractionResult {
	fields := make(map[string]WireField, len(resp.Fields))
	for key, f := range resp.Fields {
		fields[canonicalKey(key)] = f
	}

	result := mapFields(func(key string) (json.RawMessage, float64, string, bool) {
		f, ok := fields[key]
		if !ok || isNull(f.Value) {
			reason := f.Reason
			if reason == "" {
				reason = reasonNotReturned
			}
			return nil, 0, reason, false
		}
		confidence := defaultFieldConfidence
		if f.Confidence != nil {
			confidence = *f.Confidence
		}
		return f.Value, confidence, f.Reason, true
	})
	result.Warnings = append(result.Warnings, resp.Warnings...)
	result.Errors = append(result.Errors, resp.Errors...)
	return result
}

// MapLegacy converts the flat legacy contract ({"name": "...", "price": 120,
// ...}) into an extraction result at a fixed, lower confidence.
func MapLegacy(body []byte) (*domain.ExtractionResult, error) {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(body, &flat); err != nil {
		return nil, err
	}
	fields := make(map[string]json.RawMessage, len(flat))
	for key, v := range flat {
		fields[canonicalKey(key)] = v
	}

	result := mapFields(func(key string) (json.RawMessage, float64, string, bool) {
		v, ok := fields[key]
		if !ok || isNull(v) {
			return nil, 0, reasonNotReturned, false
		}
		return v, legacyFieldConfidence, "", true
	})
	result.Warnings = append(result.Warnings, warningLegacyFallback)
	return result, nil
}

type fieldLookup func(key string) (raw json.RawMessage, confidence float64, reason string, ok bool)

func mapFields(lookup fieldLookup) *domain.ExtractionResult {
	return &domain.ExtractionResult{
		Name:             mapString(lookup, "name"),
		ShortDescription: mapString(lookup, "shortdescription"),
		LongDescription:  mapString(lookup, "longdescription"),
		PurchasePrice:    mapFloat(lookup, "purchaseprice"),
		Stock:            mapInt(lookup, "stock"),
		Sizes:            mapStrings(lookup, "sizes"),
		LetterSizes:      mapStrings(lookup, "lettersizes"),
		NumericSizes:     mapStrings(lookup, "numericsizes"),
		Colors:           mapStrings(lookup, "colors"),
		Keywords:         mapStrings(lookup, "keywords"),
		Measurements:     mapMeasurements(lookup, "measurements"),
		Material:         mapString(lookup, "material"),
		Model:            mapString(lookup, "model"),
		Brand:            mapString(lookup, "brand"),
		CareInstructions: mapString(lookup, "careinstructions"),
		PackageContents:  mapString(lookup, "packagecontents"),
		DetailRows:       mapDetailRows(lookup, "detailrows"),
	}
}

// keyAliases folds the spellings backends use onto one canonical key
var keyAliases = map[string]string{
	"title":         "name",
	"productname":   "name",
	"summary":       "shortdescription",
	"description":   "longdescription",
	"price":         "purchaseprice",
	"quantity":      "stock",
	"stockquantity": "stock",
	"colours":       "colors",
	"care":          "careinstructions",
	"package":       "packagecontents",
	"inthebox":      "packagecontents",
	"details":       "detailrows",
	"attributes":    "detailrows",
}

func canonicalKey(key string) string {
	k := strings.ToLower(strings.TrimSpace(key))
	k = strings.NewReplacer("_", "", "-", "", " ", "").Replace(k)
	if alias, ok := keyAliases[k]; ok {
		return alias
	}
	return k
}

func isNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}

func mapString(lookup fieldLookup, key string) domain.ExtractedField[string] {
	raw, confidence, reason, ok := lookup(key)
	if !ok {
		return domain.MissingField[string](domain.SourceAI, reason)
	}
	s, ok := decodeString(raw)
	if !ok {
		return domain.MissingField[string](domain.SourceAI, reasonUnparseable)
	}
	if s == "" {
		return domain.MissingField[string](domain.SourceAI, reasonNotReturned)
	}
	return withReason(domain.FoundField(s, domain.SourceAI, confidence), reason)
}

func mapFloat(lookup fieldLookup, key string) domain.ExtractedField[float64] {
	raw, confidence, reason, ok := lookup(key)
	if !ok {
		return domain.MissingField[float64](domain.SourceAI, reason)
	}
	f, ok := decodeFloat(raw)
	if !ok || f <= 0 {
		return domain.MissingField[float64](domain.SourceAI, reasonUnparseable)
	}
	return withReason(domain.FoundField(f, domain.SourceAI, confidence), reason)
}

func mapInt(lookup fieldLookup, key string) domain.ExtractedField[int] {
	raw, confidence, reason, ok := lookup(key)
	if !ok {
		return domain.MissingField[int](domain.SourceAI, reason)
	}
	f, ok := decodeFloat(raw)
	if !ok || f < 0 {
		return domain.MissingField[int](domain.SourceAI, reasonUnparseable)
	}
	return withReason(domain.FoundField(int(f), domain.SourceAI, confidence), reason)
}

func mapStrings(lookup fieldLookup, key string) domain.ExtractedField[[]string] {
	raw, confidence, reason, ok := lookup(key)
	if !ok {
		return domain.MissingField[[]string](domain.SourceAI, reason)
	}
	list, ok := decodeStrings(raw)
	if !ok {
		return domain.MissingField[[]string](domain.SourceAI, reasonUnparseable)
	}
	if len(list) == 0 {
		return domain.MissingField[[]string](domain.SourceAI, reasonNotReturned)
	}
	return withReason(domain.FoundField(list, domain.SourceAI, confidence), reason)
}

func mapMeasurements(lookup fieldLookup, key string) domain.ExtractedField[[]domain.Measurement] {
	raw, confidence, reason, ok := lookup(key)
	if !ok {
		return domain.MissingField[[]domain.Measurement](domain.SourceAI, reason)
	}

	var items []struct {
		Label string          `json:"label"`
		Value json.RawMessage `json:"value"`
		Unit  string          `json:"unit"`
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return domain.MissingField[[]domain.Measurement](domain.SourceAI, reasonUnparseable)
	}

	var out []domain.Measurement
	for _, item := range items {
		v, ok := decodeFloat(item.Value)
		if !ok || strings.TrimSpace(item.Label) == "" {
			continue
		}
		out = append(out, domain.Measurement{Label: strings.TrimSpace(item.Label), Value: v, Unit: item.Unit})
	}
	if len(out) == 0 {
		return domain.MissingField[[]domain.Measurement](domain.SourceAI, reasonNotReturned)
	}
	return withReason(domain.FoundField(out, domain.SourceAI, confidence), reason)
}

// mapDetailRows accepts either [{label,value}] or a {label: value} object
func mapDetailRows(lookup fieldLookup, key string) domain.ExtractedField[[]domain.DetailRow] {
	raw, confidence, reason, ok := lookup(key)
	if !ok {
		return domain.MissingField[[]domain.DetailRow](domain.SourceAI, reason)
	}

	var rows []domain.DetailRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return domain.MissingField[[]domain.DetailRow](domain.SourceAI, reasonUnparseable)
		}
		for label, v := range obj {
			if s, ok := decodeString(v); ok && s != "" {
				rows = append(rows, domain.DetailRow{Label: label, Value: s})
			}
		}
		slices.SortFunc(rows, func(a, b domain.DetailRow) int {
			return strings.Compare(a.Label, b.Label)
		})
	}

	out := rows[:0]
	for _, r := range rows {
		if strings.TrimSpace(r.Label) != "" && strings.TrimSpace(r.Value) != "" {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return domain.MissingField[[]domain.DetailRow](domain.SourceAI, reasonNotReturned)
	}
	return withReason(domain.FoundField(out, domain.SourceAI, confidence), reason)
}

func withReason[T any](f domain.ExtractedField[T], reason string) domain.ExtractedField[T] {
	f.Reason = reason
	return f
}

// decodeString accepts JSON strings and numbers
func decodeString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

// decodeFloat accepts numbers and numeric strings such as "1,250" or "120 SAR"
func decodeFloat(raw json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	s, ok := decodeString(raw)
	if !ok {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", "")
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == '.') {
		end++
	}
	if end == 0 {
		return 0, false
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	return f, err == nil
}

// decodeStrings accepts an array of strings/numbers or a comma separated string
func decodeStrings(raw json.RawMessage) ([]string, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err == nil {
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := decodeString(item); ok && s != "" {
				out = append(out, s)
			}
		}
		return out, true
	}

	s, ok := decodeString(raw)
	if !ok {
		return nil, false
	}
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '،' || r == '/' }) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out, true
}
