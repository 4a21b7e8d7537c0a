package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/libaas-store/storefront/internal/domain"
)

const staffTokenIssuer = "storefront-api"

// TokenService signs and verifies back-office staff tokens (HS256)
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService creates a new token service
func NewTokenService(secret string) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// IssueStaffToken creates a signed token for a staff member valid for ttl
func (s *TokenService) IssueStaffToken(userID, email string, roles []string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}
	if len(roles) == 0 {
		return "", errors.New("at least one role is required")
	}
	if len(s.secret) == 0 {
		return "", errors.New("signing secret is not configured")
	}

	now := s.now()
	claims := domain.StaffClaims{
		UserID: userID,
		Email:  email,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    staffTokenIssuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseStaffToken verifies signature, algorithm, issuer, and expiry and returns the claims
func (s *TokenService) ParseStaffToken(tokenString string) (*domain.StaffClaims, error) {
	claims := &domain.StaffClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(staffTokenIssuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
