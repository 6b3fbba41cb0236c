package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
)

// Principal is the authenticated player behind a request.
type Principal struct {
	Address   string
	SessionID string
}

type principalKey struct{}

// Claims are the JWT claims issued by the wallet authentication provider.
type Claims struct {
	Address   string `json:"address"`
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// SignToken issues an HS256 token for address the way the authentication
// provider does.
func SignToken(secret []byte, address, sessionID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Address:   address,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strings.ToLower(address),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func parseToken(secret []byte, tok string) (Principal, error) {
	if tok == "" {
		return Principal{}, errors.New("missing token")
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(tok, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Principal{}, err
	}
	if !common.IsHexAddress(claims.Address) {
		return Principal{}, errors.New("token has no wallet address")
	}
	sid := claims.SessionID
	if sid == "" {
		sid = claims.Subject
	}
	if sid == "" {
		return Principal{}, errors.New("token has no session")
	}
	return Principal{Address: claims.Address, SessionID: sid}, nil
}

// RequireAuth rejects requests without a valid bearer token. WebSocket
// upgrades pass the token as ?token=.
func RequireAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var tok string
			if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				tok = strings.TrimPrefix(h, "Bearer ")
			} else {
				tok = r.URL.Query().Get("token")
			}
			p, err := parseToken(secret, tok)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
		})
	}
}

// PrincipalFrom returns the principal stored by RequireAuth.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
