package service

import (
	"errors"
	"strings"
	"time"

	"voiceswap/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken   = errors.New("invalid or expired token")
	ErrGuestsDisabled = errors.New("guest tokens are disabled")
)

// guestTokenTTL is the lifetime of an issued guest token
const guestTokenTTL = 24 * time.Hour

// AuthService resolves bearer tokens to identities and issues guest tokens.
type AuthService struct {
	jwtSecret     []byte
	issuer        string
	guestsEnabled bool
	now           func() time.Time
}

// NewAuthService creates a new auth service. issuer may be empty, in which case
// the iss claim is not checked.
func NewAuthService(secret, issuer string, guestsEnabled bool) *AuthService {
	return &AuthService{
		jwtSecret:     []byte(secret),
		issuer:        issuer,
		guestsEnabled: guestsEnabled,
		now:           time.Now,
	}
}

// Verify validates a HS256 bearer token and returns the caller's identity
func (s *AuthService) Verify(tokenString string) (*model.Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &model.UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, opts...)
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*model.UserClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &model.Identity{
		UserID: claims.Subject,
		Email:  claims.Email,
		Name:   claims.Name,
	}, nil
}

// Issue signs a token for userID
func (s *AuthService) Issue(userID, email, name string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := &model.UserClaims{
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// IssueGuest creates a fresh guest identity and its token
func (s *AuthService) IssueGuest(name string) (*model.GuestResponse, error) {
	if !s.guestsEnabled {
		return nil, ErrGuestsDisabled
	}

	userID := "guest_" + uuid.New().String()
	token, err := s.Issue(userID, "", strings.TrimSpace(name), guestTokenTTL)
	if err != nil {
		return nil, err
	}

	return &model.GuestResponse{
		Token:  token,
		UserID: userID,
	}, nil
}
