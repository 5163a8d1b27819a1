package pdfread

import (
	"strconv"
)

// opCounts aggregates what one content stream contains.
type opCounts struct {
	textChars       int
	vectorItems     int
	horizontalRules int
	verticalRules   int
}

// Rules thinner than this many points count as table ruling candidates;
// they must span at least minRuleSpan to rule out tiny decorations.
const (
	maxRuleThickness = 2.0
	minRuleSpan      = 20.0
)

// countOperators walks a page content stream counting text characters,
// vector path primitives, and ruling-line rectangles. It tolerates
// malformed streams: unknown tokens are skipped, not fatal.
func countOperators(data []byte) opCounts {
	var c opCounts

	// Sliding window of the most recent numeric operands and the
	// string-literal characters pending a text-showing operator.
	var nums [6]float64
	numCount := 0
	pendingChars := 0

	i := 0
	for i < len(data) {
		b := data[i]

		switch {
		case b == '(': // string literal
			length, next := scanStringLiteral(data, i)
			pendingChars += length
			i = next

		case b == '<' && i+1 < len(data) && data[i+1] != '<': // hex string
			length, next := scanHexString(data, i)
			pendingChars += length
			i = next

		case b == '%': // comment to end of line
			for i < len(data) && data[i] != '\n' {
				i++
			}

		case isDelimiter(b) || isWhitespace(b):
			i++

		default:
			start := i
			for i < len(data) && !isWhitespace(data[i]) && !isDelimiter(data[i]) {
				i++
			}
			tok := string(data[start:i])

			if v, err := strconv.ParseFloat(tok, 64); err == nil {
				if numCount < len(nums) {
					nums[numCount] = v
					numCount++
				} else {
					copy(nums[:], nums[1:])
					nums[len(nums)-1] = v
				}
				continue
			}

			switch tok {
			case "Tj", "TJ", "'", "\"":
				c.textChars += pendingChars
				pendingChars = 0
			case "l", "c", "v", "y":
				c.vectorItems++
			case "re":
				c.vectorItems++
				if numCount >= 2 {
					// The rectangle operands are x y w h; width and
					// height are the last two numbers seen.
					w := abs(nums[lastIdx(numCount)-1])
					h := abs(nums[lastIdx(numCount)])
					if h <= maxRuleThickness && w >= minRuleSpan {
						c.horizontalRules++
					}
					if w <= maxRuleThickness && h >= minRuleSpan {
						c.verticalRules++
					}
				}
			case "BT", "ET":
				pendingChars = 0
			}
			numCount = 0
		}
	}

	return c
}

// scanStringLiteral returns the decoded character count of a PDF string
// literal starting at data[start] == '(' and the index past its end.
func scanStringLiteral(data []byte, start int) (length, next int) {
	depth := 0
	i := start
	for i < len(data) {
		switch data[i] {
		case '\\':
			i += 2
			length++
			continue
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return length, i + 1
			}
		default:
			length++
		}
		i++
	}
	return length, i
}

// scanHexString returns the character count of a hex string starting at
// data[start] == '<' and the index past its end. Two hex digits encode
// one character.
func scanHexString(data []byte, start int) (length, next int) {
	digits := 0
	i := start + 1
	for i < len(data) && data[i] != '>' {
		if isHexDigit(data[i]) {
			digits++
		}
		i++
	}
	return (digits + 1) / 2, i + 1
}

func lastIdx(numCount int) int {
	return numCount - 1
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func isWhitespace(b byte) bool {
	switch b {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelimiter(b byte) bool {
	switch b {
	case '[', ']', '{', '}', '<', '>', '/':
		return true
	}
	return false
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}
