// Package security provides JWT token and credential utilities
package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

// ValidateJWT validates a JWT token and returns the claims
func ValidateJWT(tokenString, jwtSecret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// UserIDFromClaims extracts the actor identifier from validated claims
func UserIDFromClaims(claims jwt.MapClaims) (string, error) {
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("token missing subject")
	}
	return sub, nil
}

// GenerateUserToken creates a bearer token for a beacon client acting as
// the given user.
func GenerateUserToken(userID, jwtSecret string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign user token: %w", err)
	}
	return signed, nil
}

// GenerateSignerToken mints the short-lived credential attached to each
// outbound collector record. A fresh one is fetched per emission.
func GenerateSignerToken(userID, jwtSecret string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":   userID,
		"scope": "metrics:write",
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign collector credential: %w", err)
	}
	return signed, nil
}

// VerifyAPIKey checks a presented service API key against its stored
// bcrypt hash.
func VerifyAPIKey(presented, storedHash string) error {
	if storedHash == "" {
		return errors.New("no API key configured")
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(presented))
}
