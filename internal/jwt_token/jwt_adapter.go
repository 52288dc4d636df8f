package jwttoken

import (
	id "crimewatch/pkg/domain"
	dErrors "crimewatch/pkg/domain-errors"
	authmw "crimewatch/pkg/platform/middleware/auth"
)

// ToMiddlewareClaims converts token claims into typed ids for the auth
// middleware. Tokens with malformed subject or session ids are rejected.
func ToMiddlewareClaims(claims *Claims) (*authmw.Claims, error) {
	submitterID, err := id.ParseSubmitterID(claims.Subject)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token subject")
	}
	sessionID, err := id.ParseSessionID(claims.SessionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token session")
	}
	return &authmw.Claims{
		SubmitterID: submitterID,
		SessionID:   sessionID,
		Roles:       claims.Roles,
	}, nil
}

type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*authmw.Claims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims)
}
