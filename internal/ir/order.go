package ir

import (
	"fmt"
	"strings"
)

// TokenKind identifies which table an order token refers to.
type TokenKind string

const (
	TokenBlockType      TokenKind = "blockType"
	TokenBlockTypeGroup TokenKind = "blockTypeGroup"
)

// OrderToken is one `kind:uid` entry of a field's order list.
type OrderToken struct {
	Kind TokenKind
	UID  string
}

// BlockTypeToken returns the order token for a block type uid.
func BlockTypeToken(uid string) string {
	return string(TokenBlockType) + ":" + uid
}

// GroupToken returns the order token for a block type group uid.
func GroupToken(uid string) string {
	return string(TokenBlockTypeGroup) + ":" + uid
}

// String implements fmt.Stringer.
func (t OrderToken) String() string {
	return string(t.Kind) + ":" + t.UID
}

// ParseOrderToken splits a `kind:uid` token.
func ParseOrderToken(s string) (OrderToken, error) {
	kind, uid, ok := strings.Cut(s, ":")
	if !ok || uid == "" {
		return OrderToken{}, fmt.Errorf("malformed order token %q", s)
	}
	switch TokenKind(kind) {
	case TokenBlockType, TokenBlockTypeGroup:
		return OrderToken{Kind: TokenKind(kind), UID: uid}, nil
	default:
		return OrderToken{}, fmt.Errorf("unknown order token kind %q", kind)
	}
}

// IndexOfToken returns the position of token in tokens, or -1.
func IndexOfToken(tokens []string, token string) int {
	for i, t := range tokens {
		if t == token {
			return i
		}
	}
	return -1
}

// PositionOf derives a sort order from an order list with a legacy fallback.
// Configs written before order lists existed carried sortOrder on the entity
// itself; that value is only used when the token is absent from the list.
func PositionOf(tokens []string, token string, legacy *int) int {
	if i := IndexOfToken(tokens, token); i >= 0 {
		return i + 1
	}
	if legacy != nil {
		return *legacy
	}
	return 0
}
