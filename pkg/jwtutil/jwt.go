package jwtutil

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/momo-ra/ai-agent-microservices-v1/pkg/config"
)

// UserClaims represents the JWT claims for an authenticated caller. Plant
// selection travels in the Plant-Id header, not the token; the optional
// PlantID claim is a convenience for tokens issued for a single plant.
type UserClaims struct {
	Email   string `json:"email,omitempty"`
	UserID  uint   `json:"user_id"`
	PlantID *uint  `json:"plant_id,omitempty"`
	Role    string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTUtil is a utility for JWT token operations
type JWTUtil struct {
	config *config.JWTConfig
}

// NewJWTUtil creates a new JWT utility with the given configuration
func NewJWTUtil(cfg *config.JWTConfig) *JWTUtil {
	return &JWTUtil{
		config: cfg,
	}
}

// GenerateToken creates a JWT token with user information
func (j *JWTUtil) GenerateToken(email string, userID uint) (string, error) {
	return j.GenerateTokenWithPlant(email, userID, nil, "")
}

// GenerateTokenWithPlant creates a JWT token with user and plant information
func (j *JWTUtil) GenerateTokenWithPlant(email string, userID uint, plantID *uint, role string) (string, error) {
	if j.config == nil {
		return "", errors.New("JWT configuration not provided")
	}

	claims := UserClaims{
		Email:   email,
		UserID:  userID,
		PlantID: plantID,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(j.config.ExpirationHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.config.SigningKey))
}

// ValidateToken validates and parses the JWT token
func (j *JWTUtil) ValidateToken(tokenString string) (*UserClaims, error) {
	if j.config == nil {
		return nil, errors.New("JWT configuration not provided")
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&UserClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(j.config.SigningKey), nil
		},
	)

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*UserClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
