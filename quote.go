package chirp

import "strings"

// escapedChars are the characters that delimit a command line and therefore
// must be escaped inside free-text arguments: backslash, space, newline,
// tab and carriage return.
const escapedChars = "\\ \n\t\r"

// Quote escapes a string for use as an argument in a Chirp command line.
// Numeric arguments are sent as plain decimal and are never quoted.
func Quote(s string) string {
	if !strings.ContainsAny(s, escapedChars) {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(escapedChars, s[i]) >= 0 {
			sb.WriteByte('\\')
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// Unquote reverses Quote. It fails if s ends in a bare backslash or escapes
// a character that Quote would not have escaped.
func Unquote(s string) (string, error) {
	if !strings.ContainsRune(s, '\\') {
		return s, nil
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			sb.WriteByte(s[i])
			continue
		}
		i++
		if i == len(s) {
			return "", &ArgError{Arg: "quoted string", Reason: "trailing backslash"}
		}
		if strings.IndexByte(escapedChars, s[i]) < 0 {
			return "", &ArgError{Arg: "quoted string", Reason: `unknown escape \` + string(s[i])}
		}
		sb.WriteByte(s[i])
	}
	return sb.String(), nil
}
