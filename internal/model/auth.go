package model

import "github.com/golang-jwt/jwt/v5"

// UserClaims are the bearer token claims. The subject is the stable user id.
type UserClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the caller resolved from a bearer credential
type Identity struct {
	UserID string
	Email  string
	Name   string
}

// GuestRequest is the request body for issuing a guest token
type GuestRequest struct {
	Name string `json:"name"`
}

// GuestResponse is returned after a guest token is issued
type GuestResponse struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}
