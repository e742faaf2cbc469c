package intake

const minPhoneDigits = 5

// ValidPhone reports whether s is at least five ASCII digits and nothing else.
func ValidPhone(s string) bool {
	if len(s) < minPhoneDigits {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
