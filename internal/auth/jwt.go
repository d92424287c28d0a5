// Package auth signs and checks the bearer tokens daybook devices present to
// backupd. Both sides share one HMAC secret; the token carries the device
// id, which backupd records as the last writer of a blob.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	jwt.RegisteredClaims
	DeviceID string `json:"device_id"`
}

func GenerateToken(deviceID string, secretKey []byte, validity time.Duration) (string, error) {
	if deviceID == "" {
		return "", fmt.Errorf("%w: empty device id", common.ErrValidation)
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
		DeviceID: deviceID,
	})
	return token.SignedString(secretKey)
}

// DeviceIDFromToken validates the token and returns its device id.
// Expired tokens fail with common.ErrTokenExpired, anything else with
// common.ErrInvalidToken.
func DeviceIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if errors.Is(err, jwt.ErrTokenExpired) {
		return "", common.ErrTokenExpired
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}
	if !token.Valid || claims.DeviceID == "" {
		return "", common.ErrInvalidToken
	}
	return claims.DeviceID, nil
}
