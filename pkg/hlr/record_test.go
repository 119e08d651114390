package hlr

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want string
	}{
		{"live subscriber", Record{"error": float64(0), "status": float64(0)}, ClassValid},
		{"absent subscriber", Record{"error": float64(0), "status": float64(1)}, ClassInvalid},
		{"unsupported network", Record{"error": float64(191), "status": float64(0)}, ClassInvalid},
		{"fixed line", Record{"error": float64(193), "status": float64(1)}, ClassInvalid},
		{"missing status defaults to invalid", Record{"error": float64(0)}, ClassInvalid},
		{"missing error with live status", Record{"status": float64(0)}, ClassValid},
		{"empty record", Record{}, ClassInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.rec))
		})
	}
}

func TestStampAndClassification(t *testing.T) {
	rec := Record{"error": float64(0), "status": float64(0)}
	assert.Equal(t, ClassValid, rec.Stamp())
	assert.Equal(t, ClassValid, rec.Classification())
	assert.Equal(t, ClassValid, rec["classification"])

	// Unstamped records classify as invalid.
	assert.Equal(t, ClassInvalid, Record{}.Classification())
}

func TestRecordAccessors_JSONDecodedTypes(t *testing.T) {
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(
		`{"error":0,"status":0,"present":"yes","mcc":"255","mnc":"01",`+
			`"network":"Kyivstar","type":"mobile","ported":true}`), &rec))

	assert.Equal(t, 0, rec.ErrorCode())
	assert.Equal(t, 0, rec.StatusCode())
	assert.Equal(t, "yes", rec.Present())
	assert.Equal(t, "255", rec.MCC())
	assert.Equal(t, "01", rec.MNC())
	assert.Equal(t, "Kyivstar", rec.Network())
	assert.Equal(t, "mobile", rec.NumberType())
	assert.True(t, rec.Ported())
}

func TestRecordAccessors_Defaults(t *testing.T) {
	rec := Record{}
	assert.Equal(t, 0, rec.ErrorCode())
	assert.Equal(t, 1, rec.StatusCode())
	assert.Equal(t, "na", rec.Present())
	assert.Empty(t, rec.MCC())
	assert.False(t, rec.Ported())
}

func TestRecordAccessors_NumericMCC(t *testing.T) {
	// Some provider responses encode mcc as a number.
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(`{"mcc":255}`), &rec))
	assert.Equal(t, "255", rec.MCC())
}

func TestEmptyRecord(t *testing.T) {
	rec := EmptyRecord("40722570240")
	assert.Equal(t, ClassInvalid, Classify(rec))
	assert.Equal(t, "40722570240", rec["number"])
	assert.Equal(t, "Empty response from HLR", rec["status_message"])
}
