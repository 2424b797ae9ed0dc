package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"booktrack/pkg/models"
)

// TokenVerifier resolves a bearer token to the authenticated user id.
// Tokens are issued by the identity provider; Issue exists for tooling and
// tests that share its secret.
type TokenVerifier interface {
	Verify(tokenString string) (string, error)
	Issue(userID string) (string, time.Time, error)
}

type jwtVerifier struct {
	secret []byte
	issuer string
	expiry time.Duration
	now    func() time.Time
}

// JWT claims structure
type jwtClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// NewTokenVerifier creates an HS256 verifier
func NewTokenVerifier(secret, issuer string, expiry time.Duration) TokenVerifier {
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &jwtVerifier{
		secret: []byte(secret),
		issuer: issuer,
		expiry: expiry,
		now:    time.Now,
	}
}

// Verify checks signature, expiry and issuer and returns the user id
func (v *jwtVerifier) Verify(tokenString string) (string, error) {
	if tokenString == "" {
		return "", models.ErrInvalidToken
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(tokenString, &jwtClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", models.ErrInvalidToken.Wrap(err)
	}

	claims, ok := token.Claims.(*jwtClaims)
	if !ok || !token.Valid {
		return "", models.ErrInvalidToken
	}
	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return "", models.ErrInvalidToken.Wrap(errors.New("issuer mismatch"))
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return "", models.ErrInvalidToken.Wrap(errors.New("token has no subject"))
	}
	return userID, nil
}

// Issue signs a token for userID
func (v *jwtVerifier) Issue(userID string) (string, time.Time, error) {
	now := v.now()
	expiresAt := now.Add(v.expiry)

	claims := &jwtClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    v.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(v.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}
