package dlp

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withCheckDigit appends the digit that makes payload pass the Luhn checksum.
func withCheckDigit(payload string) string {
	for d := 0; d <= 9; d++ {
		candidate := payload + strconv.Itoa(d)
		if LuhnValid(candidate) {
			return candidate
		}
	}
	return ""
}

func TestLuhnValid_KnownNumbers(t *testing.T) {
	tests := []struct {
		name   string
		number string
		valid  bool
	}{
		{"visa test number", "4111111111111111", true},
		{"mastercard test number", "5555555555554444", true},
		{"amex test number", "378282246310005", true},
		{"discover test number", "6011111111111117", true},
		{"visa off by one", "4111111111111112", false},
		{"all zeros", "0000000000000000", true},
		{"empty", "", false},
		{"non digit", "4111-1111-1111-1111", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.valid, LuhnValid(tc.number))
		})
	}
}

func TestLuhnValid_ConstructedNumbersPass(t *testing.T) {
	payloads := []string{
		"411111111111111",
		"453957876362148",
		"512345678901234",
		"601100099990000",
		"400000000000000",
		"987654321098765",
	}
	for _, p := range payloads {
		number := withCheckDigit(p)
		require.Len(t, number, 16, "payload %s", p)
		assert.True(t, LuhnValid(number), number)
	}
}

func TestLuhnValid_EverySingleDigitSubstitutionFails(t *testing.T) {
	numbers := []string{"4111111111111111", "5555555555554444", withCheckDigit("453957876362148")}

	for _, number := range numbers {
		require.True(t, LuhnValid(number))
		for pos := 0; pos < len(number); pos++ {
			for d := byte('0'); d <= '9'; d++ {
				if number[pos] == d {
					continue
				}
				mutated := []byte(number)
				mutated[pos] = d
				assert.False(t, LuhnValid(string(mutated)),
					"substituting %c at position %d of %s should fail", d, pos, number)
			}
		}
	}
}
