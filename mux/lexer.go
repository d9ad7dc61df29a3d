package mux

import "fmt"

// lexType identifies the kind of a lexical token in a route pattern.
type lexType int

const (
	lexChar lexType = iota
	lexEscapedChar
	lexName
	lexPattern
	lexOpen
	lexClose
	lexModifier
	lexEnd
)

func (t lexType) String() string {
	switch t {
	case lexChar:
		return "CHAR"
	case lexEscapedChar:
		return "ESCAPED_CHAR"
	case lexName:
		return "NAME"
	case lexPattern:
		return "PATTERN"
	case lexOpen:
		return "OPEN"
	case lexClose:
		return "CLOSE"
	case lexModifier:
		return "MODIFIER"
	default:
		return "END"
	}
}

// lexToken is a single lexical token with its rune offset in the pattern.
type lexToken struct {
	typ   lexType
	index int
	value string
}

// isNameRune reports whether c may appear in a ":name" parameter.
func isNameRune(c rune) bool {
	return c >= '0' && c <= '9' ||
		c >= 'A' && c <= 'Z' ||
		c >= 'a' && c <= 'z' ||
		c == '_'
}

// lex splits a route pattern into lexical tokens. The returned slice always
// ends with a lexEnd token.
func lex(str string) ([]lexToken, error) {
	src := []rune(str)

	var tokens []lexToken

	i := 0
	for i < len(src) {
		c := src[i]

		switch c {
		case '*', '+', '?':
			tokens = append(tokens, lexToken{typ: lexModifier, index: i, value: string(c)})
			i++

			continue

		case '\\':
			if i+1 >= len(src) {
				return nil, fmt.Errorf("mux: missing escaped character at %d", i)
			}

			tokens = append(tokens, lexToken{typ: lexEscapedChar, index: i, value: string(src[i+1])})
			i += 2

			continue

		case '{':
			tokens = append(tokens, lexToken{typ: lexOpen, index: i, value: "{"})
			i++

			continue

		case '}':
			tokens = append(tokens, lexToken{typ: lexClose, index: i, value: "}"})
			i++

			continue

		case ':':
			j := i + 1
			for j < len(src) && isNameRune(src[j]) {
				j++
			}

			if j == i+1 {
				return nil, fmt.Errorf("mux: missing parameter name at %d", i)
			}

			tokens = append(tokens, lexToken{typ: lexName, index: i, value: string(src[i+1 : j])})
			i = j

			continue

		case '(':
			pattern, next, err := lexGroup(src, i)
			if err != nil {
				return nil, err
			}

			tokens = append(tokens, lexToken{typ: lexPattern, index: i, value: pattern})
			i = next

			continue
		}

		tokens = append(tokens, lexToken{typ: lexChar, index: i, value: string(c)})
		i++
	}

	tokens = append(tokens, lexToken{typ: lexEnd, index: i})

	return tokens, nil
}

// lexGroup reads a custom parameter pattern starting at the '(' at
// position start. It returns the inner pattern and the index just past the
// closing parenthesis. Nested groups must be non-capturing.
func lexGroup(src []rune, start int) (string, int, error) {
	count := 1
	j := start + 1

	if j < len(src) && src[j] == '?' {
		return "", 0, fmt.Errorf("mux: pattern cannot start with \"?\" at %d", j)
	}

	var pattern []rune

	for j < len(src) {
		if src[j] == '\\' {
			pattern = append(pattern, src[j])
			if j+1 < len(src) {
				pattern = append(pattern, src[j+1])
			}
			j += 2

			continue
		}

		if src[j] == ')' {
			count--
			if count == 0 {
				j++
				break
			}
		} else if src[j] == '(' {
			count++
			if j+1 >= len(src) || src[j+1] != '?' {
				return "", 0, fmt.Errorf("mux: capturing groups are not allowed at %d", j)
			}
		}

		pattern = append(pattern, src[j])
		j++
	}

	if count != 0 {
		return "", 0, fmt.Errorf("mux: unbalanced pattern at %d", start)
	}

	if len(pattern) == 0 {
		return "", 0, fmt.Errorf("mux: missing pattern at %d", start)
	}

	return string(pattern), j, nil
}
