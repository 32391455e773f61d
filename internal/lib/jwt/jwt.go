package jwt

import (
	"fmt"
	"time"

	"github.com/IlyasAtabaev731/nickpay/internal/domain/models"
	"github.com/golang-jwt/jwt/v4"
)

func NewToken(user models.User, secret string, duration time.Duration) (string, error) {
	token := jwt.New(jwt.SigningMethodHS256)

	claims := token.Claims.(jwt.MapClaims)
	claims["uid"] = string(user.ID)
	claims["nickname"] = user.Nickname
	claims["exp"] = time.Now().Add(duration).Unix()

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func ParseToken(tokenString string, secret string) (map[string]interface{}, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

// ExpiresAt reads the exp claim without verifying the signature. The client
// never holds the server's key, so this is for display only. ok is false for
// opaque (non-JWT) tokens and tokens without exp.
func ExpiresAt(tokenString string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return time.Time{}, false
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return time.Time{}, false
	}

	return time.Unix(int64(exp), 0), true
}
