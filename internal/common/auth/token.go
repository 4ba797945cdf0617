package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized covers every token failure. Callers must not tell an
// expired token apart from a malformed one.
var ErrUnauthorized = errors.New("unauthorized")

// Principal is the verified identity behind a connection or request.
type Principal struct {
	Subject string
	Role    string
	CrewID  string
}

func (p Principal) IsAdmin() bool {
	return p.Role == "admin"
}

type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// ExtractToken pulls the bearer token from a handshake request, trying the
// `token` query param, then the `auth` payload param, then the
// Authorization header, in that priority order.
func ExtractToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if payload := r.URL.Query().Get("auth"); payload != "" {
		var obj struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal([]byte(payload), &obj); err == nil && obj.Token != "" {
			return obj.Token
		}
		return payload
	}
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// Verify checks signature and expiry and requires a resolvable subject.
// Every failure collapses into ErrUnauthorized.
func (v *TokenVerifier) Verify(tokenString string) (*Principal, error) {
	if tokenString == "" {
		return nil, ErrUnauthorized
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrUnauthorized
	}

	subject, _ := claims["sub"].(string)
	if subject == "" {
		subject, _ = claims["user_id"].(string)
	}
	if subject == "" {
		return nil, ErrUnauthorized
	}

	role, _ := claims["role"].(string)
	crewID, _ := claims["crew_id"].(string)

	return &Principal{Subject: subject, Role: role, CrewID: crewID}, nil
}

// VerifyRequest extracts and verifies in one step.
func (v *TokenVerifier) VerifyRequest(r *http.Request) (*Principal, error) {
	return v.Verify(ExtractToken(r))
}
