package m

// maxSafeStringLength caps strings prepared for logging.
const maxSafeStringLength = 128

// SafeString returns the given ascii string cleaned from potentially
// disruptive characters and capped in length. The readability of the
// result is not great. It's not meant for general use, but to be able to
// log untrusted input, like filter text from clients, with some safety.
func SafeString(s string) string {
	truncated := false
	if len(s) > maxSafeStringLength {
		s = s[:maxSafeStringLength]
		truncated = true
	}

	b := []byte(s)
	for i, c := range b {
		b[i] = safeCharacter(c)
	}
	if truncated {
		b = append(b, "..."...)
	}
	return string(b)
}

func safeCharacter(c byte) byte {
	// Check for basic safe range, allowing space.
	if c < 32 || c > 122 {
		return '.'
	}

	// Other potentially disruptive characters.
	switch c {
	case '"', '$', '%', '&', '\'', '(', ')', ';', '<', '>', '\\', '`':
		return '.'
	}

	return c
}
