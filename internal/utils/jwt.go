package utils

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var jwtSecret []byte

func init() {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "your-secret-key" // Default for development
	}
	jwtSecret = []byte(secret)
}

// InterviewTokenClaims represents the claims in an interview access token.
type InterviewTokenClaims struct {
	SessionID      string `json:"sessionId"`
	CandidateName  string `json:"candidateName"`
	CandidateEmail string `json:"candidateEmail"`
	jwt.RegisteredClaims
}

// GenerateInterviewToken issues a signed token granting access to a session.
func GenerateInterviewToken(sessionID, name, email string, ttl time.Duration) (string, error) {
	claims := &InterviewTokenClaims{
		SessionID:      sessionID,
		CandidateName:  name,
		CandidateEmail: email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ValidateInterviewToken validates a JWT token and returns the claims.
func ValidateInterviewToken(tokenString string) (*InterviewTokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &InterviewTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	return token.Claims.(*InterviewTokenClaims), nil
}

// ExtractTokenFromHeader extracts the token from the Authorization header.
func ExtractTokenFromHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", errors.New("authorization header missing")
	}

	if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
		return "", errors.New("invalid authorization header format")
	}

	return authHeader[7:], nil
}
