// internal/condition/token.go
package condition

import (
	"fmt"
	"strings"
	"unicode"
)

/*
 * Tokenizer for the condition DSL.
 *
 * Produces a flat token stream consumed by the recursive-descent parser in
 * parser.go. The textual syntax is the externally-visible contract: stored
 * rule and segment conditions must keep parsing identically across
 * releases, so token shapes here never change silently.
 *
 * Token classes:
 *   - ident: bare words and dotted field paths (a.b.0); keywords are
 *     idents classified case-insensitively at parse time
 *   - number: integer and float literals, optional leading minus
 *   - string: single- or double-quoted, no escape processing
 *   - operator: = != <> > >= < <=
 *   - punctuation: ( ) [ ] ,
 *
 * Positions are byte offsets into the source text, carried into
 * SyntaxError for caller-facing messages.
 */

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokOperator
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokIdent:
		return "identifier"
	case tokNumber:
		return "number"
	case tokString:
		return "string"
	case tokOperator:
		return "operator"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokLBracket:
		return "'['"
	case tokRBracket:
		return "']'"
	case tokComma:
		return "','"
	default:
		return "unknown token"
	}
}

type token struct {
	Kind tokenKind
	Text string
	Pos  int
}

// SyntaxError describes a malformed condition. It identifies the offending
// token and propagates to the caller unmodified.
type SyntaxError struct {
	Pos  int
	Got  string
	Want string
}

func (e *SyntaxError) Error() string {
	got := e.Got
	if got == "" {
		got = "end of input"
	}
	return fmt.Sprintf("syntax error at position %d: unexpected %s, expected %s", e.Pos, got, e.Want)
}

// keyword reports whether the ident token matches the keyword,
// case-insensitively. Keywords are not reserved: "exists" remains a valid
// field path segment when it appears in operand position.
func (t token) keyword(word string) bool {
	return t.Kind == tokIdent && strings.EqualFold(t.Text, word)
}

// tokenize scans source text into tokens. The only lexical failure modes
// are an unterminated string and a character outside the grammar.
func tokenize(src string) ([]token, error) {
	var tokens []token
	i := 0
	n := len(src)

	for i < n {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '(':
			tokens = append(tokens, token{tokLParen, "(", i})
			i++
		case c == ')':
			tokens = append(tokens, token{tokRParen, ")", i})
			i++
		case c == '[':
			tokens = append(tokens, token{tokLBracket, "[", i})
			i++
		case c == ']':
			tokens = append(tokens, token{tokRBracket, "]", i})
			i++
		case c == ',':
			tokens = append(tokens, token{tokComma, ",", i})
			i++

		case c == '=':
			tokens = append(tokens, token{tokOperator, "=", i})
			i++
		case c == '!':
			if i+1 < n && src[i+1] == '=' {
				tokens = append(tokens, token{tokOperator, "!=", i})
				i += 2
			} else {
				return nil, &SyntaxError{Pos: i, Got: "'!'", Want: "'!='"}
			}
		case c == '<':
			switch {
			case i+1 < n && src[i+1] == '>':
				tokens = append(tokens, token{tokOperator, "<>", i})
				i += 2
			case i+1 < n && src[i+1] == '=':
				tokens = append(tokens, token{tokOperator, "<=", i})
				i += 2
			default:
				tokens = append(tokens, token{tokOperator, "<", i})
				i++
			}
		case c == '>':
			if i+1 < n && src[i+1] == '=' {
				tokens = append(tokens, token{tokOperator, ">=", i})
				i += 2
			} else {
				tokens = append(tokens, token{tokOperator, ">", i})
				i++
			}

		case c == '"' || c == '\'':
			quote := c
			start := i
			i++
			for i < n && src[i] != quote {
				i++
			}
			if i >= n {
				return nil, &SyntaxError{Pos: start, Got: "unterminated string", Want: "closing quote"}
			}
			tokens = append(tokens, token{tokString, src[start+1 : i], start})
			i++

		case c >= '0' && c <= '9', c == '-' && i+1 < n && src[i+1] >= '0' && src[i+1] <= '9':
			start := i
			i++
			for i < n && (src[i] >= '0' && src[i] <= '9' || src[i] == '.') {
				i++
			}
			tokens = append(tokens, token{tokNumber, src[start:i], start})

		case isIdentStart(rune(c)):
			start := i
			for i < n && isIdentPart(rune(src[i])) {
				i++
			}
			tokens = append(tokens, token{tokIdent, src[start:i], start})

		default:
			return nil, &SyntaxError{Pos: i, Got: fmt.Sprintf("%q", string(c)), Want: "field, literal or operator"}
		}
	}

	tokens = append(tokens, token{tokEOF, "", n})
	return tokens, nil
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_' || r == '@'
}

// isIdentPart admits dots and digits so a dotted field path, including
// rendered array indices (a.b.0), lexes as a single token.
func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.' || r == '@'
}
