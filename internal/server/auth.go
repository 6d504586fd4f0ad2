package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"

	"missionctl/internal/config"
)

// AuthConfig carries the optional API auth settings. When no JWT secret and
// no API keys are configured the middleware passes every request through and
// the X-Actor-Id header names the actor for the activity log.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

const defaultTokenTTL = 24 * time.Hour

func (c AuthConfig) tokenTTL() time.Duration {
	if c.TokenTTL > 0 {
		return c.TokenTTL
	}
	return defaultTokenTTL
}

func (c AuthConfig) enabled(cfg *config.Config) bool {
	if strings.TrimSpace(c.JWTSecret) != "" {
		return true
	}
	return cfg != nil && len(cfg.Auth.APIKeys) > 0
}

type Principal struct {
	Actor  string
	Source string
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func actorFromContext(ctx context.Context) string {
	if p, ok := ctx.Value(principalKey{}).(Principal); ok {
		return p.Actor
	}
	return ""
}

type jwtClaims struct {
	jwt.RegisteredClaims
}

func authenticateJWT(token, secret string) (Principal, error) {
	if strings.TrimSpace(secret) == "" {
		return Principal{}, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwtClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return Principal{}, err
	}
	if !parsed.Valid {
		return Principal{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return Principal{}, errors.New("subject claim required")
	}
	return Principal{Actor: claims.Subject, Source: "jwt"}, nil
}

func issueToken(secret, subject string, ttl time.Duration, now time.Time) (string, time.Time, error) {
	expires := now.Add(ttl)
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expires, nil
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func newAuthMiddleware(basePath string, ac AuthConfig, cfg *config.Config) func(http.Handler) http.Handler {
	exempt := map[string]struct{}{
		path.Join(basePath, "health"):        {},
		path.Join(basePath, "auth", "token"): {},
		path.Join(basePath, "openapi.json"):  {},
		"/docs":                              {},
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			if _, ok := exempt[req.URL.Path]; ok {
				next.ServeHTTP(w, req)
				return
			}

			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			apiKeyHeader := strings.TrimSpace(req.Header.Get("X-Api-Key"))
			actorHeader := strings.TrimSpace(req.Header.Get("X-Actor-Id"))

			if !ac.enabled(cfg) {
				ctx := withPrincipal(req.Context(), Principal{Actor: actorHeader, Source: "header"})
				next.ServeHTTP(w, req.WithContext(ctx))
				return
			}

			if authz != "" {
				token, ok := bearerToken(authz)
				if !ok {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
					return
				}
				principal, err := authenticateJWT(token, ac.JWTSecret)
				if err != nil {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
					return
				}
				next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), principal)))
				return
			}

			if apiKeyHeader != "" && cfg != nil {
				if owner, ok := cfg.KeyOwner(apiKeyHeader); ok {
					ctx := withPrincipal(req.Context(), Principal{Actor: owner, Source: "api_key"})
					next.ServeHTTP(w, req.WithContext(ctx))
					return
				}
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
				return
			}

			respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}

func registerAuthToken(api huma.API, ac AuthConfig, cfg *config.Config) {
	huma.Register(api, huma.Operation{
		OperationID: "auth-token",
		Method:      http.MethodPost,
		Path:        "/auth/token",
		Summary:     "Exchange an API key for a bearer token",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body TokenRequest `json:"body"`
	}) (*struct {
		Body TokenResponse `json:"body"`
	}, error) {
		if strings.TrimSpace(ac.JWTSecret) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "token auth is not configured", nil)
		}
		owner, ok := cfg.KeyOwner(input.Body.APIKey)
		if !ok {
			return nil, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil)
		}
		token, expires, err := issueToken(ac.JWTSecret, owner, ac.tokenTTL(), time.Now())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TokenResponse `json:"body"`
		}{Body: TokenResponse{
			Token:     token,
			ExpiresAt: expires.UTC().Format(time.RFC3339),
		}}, nil
	})
}
