// Package hlr implements the number-validity lookup pipeline: the HTTP
// client for the HLR provider, the classification of its records, and the
// cache-aware resolver that front-ends it.
package hlr

import "encoding/json"

// Classification values stamped onto every record.
const (
	ClassValid   = "valid"
	ClassInvalid = "invalid"
)

const classificationKey = "classification"

// Record is one HLR lookup result. The provider's schema is loose (fields
// come and go per network), so the record is kept as the raw decoded JSON
// object and accessed through typed getters. The raw form is what gets
// cached and persisted, so nothing the provider sent is ever dropped.
type Record map[string]any

// Classify derives the validity class of a record:
//
//	valid   error == 0 && status == 0
//	invalid everything else (absent subscriber, unsupported network 191/192,
//	        fixed line 193, non-zero status, missing fields)
//
// A missing error field counts as 0, a missing status field as 1, matching
// the provider's documented defaults.
func Classify(r Record) string {
	if r.intField("error", 0) == 0 && r.intField("status", 1) == 0 {
		return ClassValid
	}
	return ClassInvalid
}

// Stamp writes the classification onto the record so it travels with it
// through cache and store. Returns the class for convenience.
func (r Record) Stamp() string {
	class := Classify(r)
	r[classificationKey] = class
	return class
}

// Classification returns the stamped class, or ClassInvalid if the record
// was never stamped. Classification is total: every record maps to a class.
func (r Record) Classification() string {
	if c, ok := r[classificationKey].(string); ok && c == ClassValid {
		return ClassValid
	}
	return ClassInvalid
}

// ErrorCode returns the provider error field (0 when absent).
func (r Record) ErrorCode() int { return r.intField("error", 0) }

// StatusCode returns the provider status field (1 when absent).
func (r Record) StatusCode() int { return r.intField("status", 1) }

// Present returns the provider present field ("na" when absent).
func (r Record) Present() string { return r.stringField("present", "na") }

// MCC returns the mobile country code as a string, however the provider
// encoded it.
func (r Record) MCC() string { return r.stringField("mcc", "") }

// MNC returns the mobile network code as a string.
func (r Record) MNC() string { return r.stringField("mnc", "") }

// Network returns the operator name.
func (r Record) Network() string { return r.stringField("network", "") }

// NumberType returns the line type ("mobile", "fixed", ...).
func (r Record) NumberType() string { return r.stringField("type", "") }

// Ported reports whether the number was ported.
func (r Record) Ported() bool {
	b, _ := r["ported"].(bool)
	return b
}

// intField reads a numeric field tolerating the types encoding/json can
// produce (float64 from plain decode, json.Number, or a numeric string).
func (r Record) intField(key string, def int) int {
	switch v := r[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return def
}

func (r Record) stringField(key, def string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case float64:
		return json.Number(jsonFloatString(v)).String()
	}
	return def
}

func jsonFloatString(f float64) string {
	b, _ := json.Marshal(f)
	return string(b)
}

// EmptyRecord synthesizes the record used when the provider answered but
// carried no entry for the queried number.
func EmptyRecord(msisdn string) Record {
	return Record{
		"number":         msisdn,
		"error":          float64(1),
		"status":         float64(1),
		"status_message": "Empty response from HLR",
	}
}
