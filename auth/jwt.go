package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"social-server/core"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL matches the lifetime of tokens handed out at login.
const DefaultTTL = 2 * time.Hour

var ErrNoUserID = errors.New("token carries no user id")

// Claims is the payload of a session token.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 session tokens. It implements core.IdentityVerifier.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify returns the user a token was issued for. A "Bearer " prefix is accepted.
func (v *Verifier) Verify(_ context.Context, tokenString string) (core.UserID, error) {
	tokenString = strings.TrimSpace(tokenString)
	if len(tokenString) > 7 && strings.EqualFold(tokenString[:7], "bearer ") {
		tokenString = strings.TrimSpace(tokenString[7:])
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return "", ErrNoUserID
	}
	return core.UserID(userID), nil
}

// Issue signs a token for userID valid for ttl.
func (v *Verifier) Issue(userID core.UserID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: string(userID),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
