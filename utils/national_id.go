package utils

// IsValidNationalID checks an Israeli identity number: exactly nine digits whose
// weighted sum (every second digit doubled, 9 subtracted from results above 9)
// is a multiple of ten.
func IsValidNationalID(id string) bool {
	if len(id) != 9 {
		return false
	}

	sum := 0
	for i := 0; i < 9; i++ {
		c := id[i]
		if c < '0' || c > '9' {
			return false
		}
		digit := int(c - '0')
		if i%2 == 1 {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
	}

	return sum%10 == 0
}
