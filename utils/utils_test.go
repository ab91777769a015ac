package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venue-tickets-api/models"
)

func TestIsValidNationalID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"000000018", true},
		{"123456782", true},
		{"123456789", false},
		{"12345678", false},
		{"1234567820", false},
		{"12345678a", false},
		{"", false},
		{"000000000", true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.valid, IsValidNationalID(tt.id), tt.id)
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "480 ₪", FormatAmount(decimal.NewFromInt(480), "₪"))
	assert.Equal(t, "147.50 $", FormatAmount(decimal.RequireFromString("147.5"), "$"))
	assert.Equal(t, "0", FormatAmount(decimal.Zero, ""))
}

func TestParseAmount(t *testing.T) {
	d, err := ParseAmount("₪1,350.00")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1350).Equal(d))

	_, err = ParseAmount("abc")
	assert.Error(t, err)
}

func TestResponses(t *testing.T) {
	rec := httptest.NewRecorder()
	SendSuccessResponse(rec, models.APIResponse{Data: map[string]int{"n": 1}})
	assert.Equal(t, http.StatusOK, rec.Code)

	var ok models.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ok))
	assert.Equal(t, "success", ok.Status)

	rec = httptest.NewRecorder()
	SendErrorResponse(rec, http.StatusBadRequest, "bad")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"status":"error","message":"bad"}`, rec.Body.String())
}
