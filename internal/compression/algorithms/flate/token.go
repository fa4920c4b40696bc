package flate

import "fmt"

type TokenKind int

const (
	LiteralToken TokenKind = iota
	MatchToken
)

// Token is one decode event: a literal byte, or a back-reference copying
// Length bytes from Distance bytes before the current output position.
type Token struct {
	Kind     TokenKind
	Value    byte
	Length   uint16
	Distance uint16
}

const (
	minMatchLength = 3
	maxMatchLength = 258
	maxDistance    = 32768
)

func Literal(b byte) Token {
	return Token{Kind: LiteralToken, Value: b}
}

func Match(length, distance uint16) Token {
	return Token{Kind: MatchToken, Length: length, Distance: distance}
}

func (t Token) String() string {
	if t.Kind == LiteralToken {
		return fmt.Sprintf("literal(%#02x)", t.Value)
	}
	return fmt.Sprintf("match(length=%d, distance=%d)", t.Length, t.Distance)
}
