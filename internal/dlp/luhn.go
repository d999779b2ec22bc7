package dlp

// LuhnValid reports whether digits passes the Luhn checksum. Every second
// digit from the right is doubled (minus 9 when above 9) and the total must
// be divisible by 10. Empty input and non-digit characters are invalid.
func LuhnValid(digits string) bool {
	if digits == "" {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
