package auth

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// jwtSecret is resolved lazily so config.Load can populate the environment
// from .env before the first token is signed or validated.
var jwtSecret = sync.OnceValue(func() []byte {
	return []byte(getJwtSecret())
})

// Claims defines the structure of the JWT payload. MiddlemanID is set only
// on tokens issued through the middleman credential check.
type Claims struct {
	UserID      uuid.UUID  `json:"user_id"`
	Username    string     `json:"username"`
	MiddlemanID *uuid.UUID `json:"middleman_id,omitempty"`
	jwt.RegisteredClaims
}

func getJwtSecret() string {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Println("WARNING: JWT_SECRET environment variable not set. Using default insecure secret.")
		return "!!REPLACE_THIS_WITH_A_STRONG_SECRET_KEY!!"
	}
	return secret
}

// GenerateJWT creates a new JWT for a given user ID and username.
func GenerateJWT(userID uuid.UUID, username string) (string, error) {
	return signToken(&Claims{
		UserID:   userID,
		Username: username,
	})
}

// GenerateMiddlemanJWT creates a JWT that additionally carries a verified
// middleman identity.
func GenerateMiddlemanJWT(userID uuid.UUID, username string, middlemanID uuid.UUID) (string, error) {
	return signToken(&Claims{
		UserID:      userID,
		Username:    username,
		MiddlemanID: &middlemanID,
	})
}

func signToken(claims *Claims) (string, error) {
	// Token expires in 24 hours
	expirationTime := time.Now().Add(24 * time.Hour)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(expirationTime),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		Issuer:    "tradevault",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret())
}

// ValidateJWT validates a JWT string and returns the claims if valid.
func ValidateJWT(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Ensure the signing method is HMAC
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret(), nil
	})

	if err != nil {
		return nil, err // Handles expiration, invalid signature, etc.
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}
