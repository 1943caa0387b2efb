package segment

import (
	"strconv"
	"strings"
)

var wordNumbers = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14,
	"fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18,
	"nineteen": 19, "twenty": 20, "twenty-one": 21, "twenty-two": 22,
	"twenty-three": 23, "twenty-four": 24, "twenty-five": 25,
	"twenty-six": 26, "twenty-seven": 27, "twenty-eight": 28,
	"twenty-nine": 29, "thirty": 30,
}

var romanValues = map[byte]int{
	'I': 1, 'V': 5, 'X': 10, 'L': 50, 'C': 100, 'D': 500, 'M': 1000,
}

// parseNumber interprets a chapter number token written as arabic
// digits, a roman numeral, or an English word. Returns 0 when the
// token is not a number.
func parseNumber(token string) int {
	token = strings.TrimSpace(strings.Trim(token, ".:"))
	if token == "" {
		return 0
	}
	if n, err := strconv.Atoi(token); err == nil && n > 0 {
		return n
	}
	if n := romanToInt(token); n > 0 {
		return n
	}
	return wordNumbers[strings.ToLower(token)]
}

// romanToInt parses an uppercase or lowercase roman numeral.
// Returns 0 for anything that is not a valid numeral.
func romanToInt(s string) int {
	s = strings.ToUpper(s)
	total := 0
	for i := 0; i < len(s); i++ {
		v, ok := romanValues[s[i]]
		if !ok {
			return 0
		}
		if i+1 < len(s) && romanValues[s[i+1]] > v {
			total -= v
		} else {
			total += v
		}
	}
	return total
}
