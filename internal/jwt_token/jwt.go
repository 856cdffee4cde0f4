package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"contactgraph/pkg/domain"
	dErrors "contactgraph/pkg/domain-errors"
)

// Claims represents the JWT claims of an owner token. The owner_scope claim
// selects the contact partition every request operates on.
type Claims struct {
	OwnerScope string `json:"owner_scope"`
	jwt.RegisteredClaims
}

// JWTService handles owner token creation and validation (HS256).
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewJWTService(signingKey string, issuer string, audience string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// GenerateOwnerToken signs a token scoped to owner. subject identifies the
// caller for audit purposes and may be empty.
func (s *JWTService) GenerateOwnerToken(owner domain.OwnerScope, subject string, expiresIn time.Duration) (string, error) {
	if owner.IsNil() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "owner scope is required")
	}
	now := time.Now()
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		OwnerScope: owner.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})

	signedToken, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return "", err
	}
	return signedToken, nil
}

// ValidateToken verifies signature, expiry, issuer and audience, and that the
// owner_scope claim is a well-formed owner scope.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if _, err := domain.ParseOwnerScope(claims.OwnerScope); err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid owner scope claim")
	}
	return claims, nil
}
