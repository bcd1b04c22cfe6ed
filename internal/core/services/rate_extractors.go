package services

import (
	"bytes"
	"encoding/json"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"
)

// RateExtractor pulls the rate for target out of a provider response body.
// It reports false when the body does not have its shape.
type RateExtractor func(body []byte, target string) (decimal.Decimal, bool)

// DefaultRateExtractors lists the known provider response shapes in priority order.
func DefaultRateExtractors() []RateExtractor {
	return []RateExtractor{
		ExtractResultField,
		ExtractInfoRate,
		ExtractTopLevelRate,
		ExtractRatesMap,
		ExtractDataMap,
		ExtractDataMapValue,
		ExtractSingleDataValue,
	}
}

// ExtractResultField reads {"result": 1.07}.
func ExtractResultField(body []byte, _ string) (decimal.Decimal, bool) {
	return extractPath(body, "$.result")
}

// ExtractInfoRate reads {"info": {"rate": 1.07}}.
func ExtractInfoRate(body []byte, _ string) (decimal.Decimal, bool) {
	return extractPath(body, "$.info.rate")
}

// ExtractTopLevelRate reads {"rate": 1.07}.
func ExtractTopLevelRate(body []byte, _ string) (decimal.Decimal, bool) {
	return extractPath(body, "$.rate")
}

// ExtractRatesMap reads {"rates": {"USD": 1.07}}.
func ExtractRatesMap(body []byte, target string) (decimal.Decimal, bool) {
	return extractPath(body, "$.rates."+target)
}

// ExtractDataMap reads {"data": {"USD": 1.07}}.
func ExtractDataMap(body []byte, target string) (decimal.Decimal, bool) {
	return extractPath(body, "$.data."+target)
}

// ExtractDataMapValue reads {"data": {"USD": {"value": 1.07}}}.
func ExtractDataMapValue(body []byte, target string) (decimal.Decimal, bool) {
	return extractPath(body, "$.data."+target+".value")
}

// ExtractSingleDataValue reads {"data": {"<any key>": {"value": 1.07}}} when
// exactly one entry carries a numeric value, so map order never picks the rate.
func ExtractSingleDataValue(body []byte, _ string) (decimal.Decimal, bool) {
	doc, ok := decodeJSON(body)
	if !ok {
		return decimal.Decimal{}, false
	}
	raw, err := jsonpath.Get("$.data", doc)
	if err != nil {
		return decimal.Decimal{}, false
	}
	data, ok := raw.(map[string]any)
	if !ok {
		return decimal.Decimal{}, false
	}

	var found []decimal.Decimal
	for _, entry := range data {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if v, ok := numericValue(obj["value"]); ok {
			found = append(found, v)
		}
	}
	if len(found) != 1 {
		return decimal.Decimal{}, false
	}
	return found[0], true
}

func extractPath(body []byte, path string) (decimal.Decimal, bool) {
	doc, ok := decodeJSON(body)
	if !ok {
		return decimal.Decimal{}, false
	}
	val, err := jsonpath.Get(path, doc)
	if err != nil {
		return decimal.Decimal{}, false
	}
	// jsonpath may hand back a one-element list for a single match.
	if list, ok := val.([]any); ok && len(list) == 1 {
		val = list[0]
	}
	return numericValue(val)
}

func decodeJSON(body []byte) (any, bool) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, false
	}
	return doc, true
}

// numericValue accepts JSON numbers only; rates must be positive.
func numericValue(v any) (decimal.Decimal, bool) {
	var d decimal.Decimal
	switch n := v.(type) {
	case json.Number:
		parsed, err := decimal.NewFromString(n.String())
		if err != nil {
			return decimal.Decimal{}, false
		}
		d = parsed
	case float64:
		d = decimal.NewFromFloat(n)
	default:
		return decimal.Decimal{}, false
	}
	if !d.IsPositive() {
		return decimal.Decimal{}, false
	}
	return d, true
}
