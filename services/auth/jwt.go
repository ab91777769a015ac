package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const CheckoutTokenDuration = 30 * time.Minute

var (
	ErrTokenExpired = errors.New("token expired")
	ErrInvalidToken = errors.New("invalid token")
)

// JWTService issues the bearer tokens that bind a page to its checkout.
type JWTService struct {
	secretKey []byte
	issuer    string
	duration  time.Duration
	now       func() time.Time
}

type Claims struct {
	CheckoutID string `json:"checkout_id"`
	jwt.RegisteredClaims
}

func NewJWTService(secretKey, issuer string, duration time.Duration) *JWTService {
	if duration <= 0 {
		duration = CheckoutTokenDuration
	}
	return &JWTService{
		secretKey: []byte(secretKey),
		issuer:    issuer,
		duration:  duration,
		now:       time.Now,
	}
}

// GenerateToken returns a token for checkoutID and its expiry.
func (j *JWTService) GenerateToken(checkoutID string) (string, time.Time, error) {
	now := j.now()
	expiresAt := now.Add(j.duration)
	claims := Claims{
		CheckoutID: checkoutID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   checkoutID,
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("error signing checkout token: %v", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken returns the checkout id the token was issued for.
func (j *JWTService) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	}, jwt.WithIssuer(j.issuer), jwt.WithTimeFunc(j.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.CheckoutID == "" {
		return "", ErrInvalidToken
	}

	return claims.CheckoutID, nil
}
