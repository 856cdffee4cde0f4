package jwttoken

import (
	"contactgraph/internal/platform/middleware"
	"contactgraph/pkg/domain"
)

func ToMiddlewareClaims(claims *Claims) *middleware.JWTClaims {
	// ValidateToken already checked the claim, so the parse cannot fail here.
	owner, _ := domain.ParseOwnerScope(claims.OwnerScope)
	return &middleware.JWTClaims{
		OwnerScope: owner,
		Subject:    claims.Subject,
		TokenID:    claims.ID,
	}
}

// JWTServiceAdapter exposes JWTService through the middleware validator interface.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims), nil
}
