package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/Checker-Finance/orders/pkg/model"
)

func TestFormatDecimal_Tiers(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "0.00e+0"},
		{"0.00005", "5.00e-5"},
		{"0.0000123456", "1.23e-5"},
		{"0.0001", "0.000100"},
		{"0.5", "0.500000"},
		{"0.1234567", "0.123457"},
		{"1", "1.0000"},
		{"2", "2.0000"},
		{"999.12345", "999.1235"},
		{"1000", "1,000"},
		{"2000", "2,000"},
		{"1234.5", "1,234.5"},
		{"1234567.891234", "1,234,567.8912"},
		{"123456", "123,456"},
		{"-0.5", "-0.500000"},
		{"-1234.5", "-1,234.5"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatDecimal(decimal.RequireFromString(tc.in)))
		})
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "-", FormatAmount(nil))
	assert.Equal(t, "0.00001", FormatAmount(&model.Amount{Raw: "10", Formatted: "0.00001"}), "tiny amounts keep backend formatting")
	assert.Equal(t, "1.5000", FormatAmount(&model.Amount{Raw: "1500000", Formatted: "1.5"}))
	assert.Equal(t, "12,345.67", FormatAmount(&model.Amount{Formatted: "12345.67"}))
	assert.Equal(t, "n/a", FormatAmount(&model.Amount{Formatted: "n/a"}))
}
