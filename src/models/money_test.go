package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCents(t *testing.T) {
	tests := []struct {
		in      string
		want    Cents
		wantErr bool
	}{
		{"12.34", 1234, false},
		{"-5", -500, false},
		{"0.1", 10, false},
		{"1000.00", 100000, false},
		{"1.230", 123, false},
		{"1.234", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCents(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCentsFromFloat(t *testing.T) {
	assert.Equal(t, Cents(1999), CentsFromFloat(19.99))
	assert.Equal(t, Cents(-12000), CentsFromFloat(-120))
	assert.Equal(t, Cents(30), CentsFromFloat(0.1+0.2))
}

func TestCentsJSON(t *testing.T) {
	var body struct {
		Amount Cents `json:"amount"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"amount": 50.5}`), &body))
	assert.Equal(t, Cents(5050), body.Amount)

	require.NoError(t, json.Unmarshal([]byte(`{"amount": "-7.25"}`), &body))
	assert.Equal(t, Cents(-725), body.Amount)

	assert.Error(t, json.Unmarshal([]byte(`{"amount": 1.005}`), &body))

	out, err := json.Marshal(struct {
		Amount Cents `json:"amount"`
	}{Amount: -1205})
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount": -12.05}`, string(out))
}

func TestEnvelopeDerivedValues(t *testing.T) {
	e := Envelope{Allocated: 5000, Spent: 12000}
	assert.Equal(t, Cents(-7000), e.Available())
	assert.Equal(t, Cents(7000), e.Deficit())

	e.Spent = 1000
	assert.Equal(t, Cents(0), e.Deficit())
	assert.True(t, Envelope{Name: " to be assigned"}.IsToBeAssigned())
	assert.Equal(t, "Visa Payment", PaymentEnvelopeName("Visa"))
}
