package jwttoken

import (
	authmw "clinic/pkg/platform/middleware/auth"
)

// JWTServiceAdapter lets RequireAuth validate tokens without importing this
// package.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*authmw.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &authmw.JWTClaims{Username: claims.Username, JTI: claims.ID}, nil
}
