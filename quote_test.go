package chirp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQuote(t *testing.T) {
	tt := []struct {
		name   string
		input  string
		expect string
	}{
		{"plain", "output.txt", "output.txt"},
		{"space", "my file", `my\ file`},
		{"backslash", `a\b`, `a\\b`},
		{"newline", "a\nb", "a\\\nb"},
		{"tab", "a\tb", "a\\\tb"},
		{"carriage return", "a\rb", "a\\\rb"},
		{"mixed", "a b\\c\td", "a\\ b\\\\c\\\td"},
		{"untouched specials", "a*?[]$'\"b", "a*?[]$'\"b"},
		{"empty", "", ""},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, Quote(tc.input))
		})
	}
}

func TestQuoteRoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"plain",
		"with space",
		"trailing space ",
		" leading",
		"\\",
		"\\\\n",
		"tab\tand\nnewline\rand return",
		"  \t\r\n\\ ",
		"mixed \\ soup\t\nfinal",
	}

	for _, in := range inputs {
		got, err := Unquote(Quote(in))
		require.NoError(t, err, "input %q", in)
		require.Equal(t, in, got)
	}
}

func TestUnquoteErrors(t *testing.T) {
	_, err := Unquote(`trailing\`)
	var argErr *ArgError
	require.ErrorAs(t, err, &argErr)

	_, err = Unquote(`bad\escape`)
	require.ErrorAs(t, err, &argErr)
}
