package identity

import (
	"encoding/json"
	"fmt"
	"strconv"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// supportedAlgorithms lists the signature algorithms accepted when parsing backend tokens
var supportedAlgorithms = []jose.SignatureAlgorithm{
	jose.HS256, jose.HS384, jose.HS512,
	jose.RS256, jose.RS384, jose.RS512,
	jose.ES256, jose.ES384, jose.ES512,
}

// TokenClaims are the application claims carried by a backend token
type TokenClaims struct {
	Subject  string
	ID       string
	Role     string
	FullName string
	Email    string
	Floor    *int
}

type privateClaims struct {
	ID       string      `json:"id,omitempty"`
	UserID   string      `json:"_id,omitempty"`
	Role     string      `json:"role,omitempty"`
	FullName string      `json:"fullName,omitempty"`
	Email    string      `json:"email,omitempty"`
	Floor    flexibleInt `json:"floor,omitempty"`
}

// flexibleInt accepts a JSON number or numeric string
type flexibleInt struct {
	value *int
}

func (f *flexibleInt) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("floor must be a number: %w", err)
		}
		n = json.Number(s)
	}
	v, err := strconv.Atoi(n.String())
	if err != nil {
		return fmt.Errorf("floor must be an integer: %w", err)
	}
	f.value = &v
	return nil
}

// ParseClaims decodes the claims of a backend token without verifying its
// signature. The result is only used for display and routing.
func ParseClaims(raw string) (TokenClaims, error) {
	tok, err := jwt.ParseSigned(raw, supportedAlgorithms)
	if err != nil {
		return TokenClaims{}, fmt.Errorf("failed to parse token: %w", err)
	}

	var std jwt.Claims
	var priv privateClaims
	if err := tok.UnsafeClaimsWithoutVerification(&std, &priv); err != nil {
		return TokenClaims{}, fmt.Errorf("failed to decode token claims: %w", err)
	}

	claims := TokenClaims{
		Subject:  std.Subject,
		Role:     priv.Role,
		FullName: priv.FullName,
		Email:    priv.Email,
		Floor:    priv.Floor.value,
	}
	switch {
	case priv.UserID != "":
		claims.ID = priv.UserID
	case priv.ID != "":
		claims.ID = priv.ID
	default:
		claims.ID = std.Subject
	}
	return claims, nil
}

// FromToken builds an Identity from token claims alone
func FromToken(raw string) (Identity, error) {
	claims, err := ParseClaims(raw)
	if err != nil {
		return Identity{}, err
	}
	return New(claims.ID, ParseRole(claims.Role), claims.Floor, claims.FullName, claims.Email, raw), nil
}

// Merge fills empty fields of id with values decoded from its token.
// Fields already set are kept. A token that cannot be parsed leaves id unchanged.
func Merge(id Identity) Identity {
	if id.Token == "" {
		return id
	}
	claims, err := ParseClaims(id.Token)
	if err != nil {
		return id
	}
	out := id.Clone()
	if out.UserID == "" {
		out.UserID = claims.ID
	}
	if out.Role == "" {
		out.Role = ParseRole(claims.Role)
	}
	if out.Floor == nil {
		out.Floor = copyInt(claims.Floor)
	}
	if out.FullName == "" {
		out.FullName = claims.FullName
	}
	if out.Email == "" {
		out.Email = claims.Email
	}
	return out
}
