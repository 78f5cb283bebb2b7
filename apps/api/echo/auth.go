package echoapi

import (
	"crypto/rsa"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/trezcool/soma/core"
	"github.com/trezcool/soma/core/user"
)

const (
	contextClaimsKey = "userToken"
	signingMethod    = "RS256"
)

// Claims represents the Clerk session token claims.
type Claims struct {
	jwt.StandardClaims
	AuthorizedParty string `json:"azp,omitempty"`
	SessionID       string `json:"sid,omitempty"`
}

// newAuthMiddleware verifies Clerk session tokens and makes sure the caller has a local user row.
func newAuthMiddleware(key *rsa.PublicKey, parties []string, svc user.Service, logger core.Logger) []echo.MiddlewareFunc {
	jwtMw := middleware.JWTWithConfig(middleware.JWTConfig{
		SigningKey:    key,
		SigningMethod: signingMethod,
		ContextKey:    contextClaimsKey,
		Claims:        new(Claims),
	})
	return []echo.MiddlewareFunc{jwtMw, sessionMiddleware(parties, svc, logger)}
}

func sessionMiddleware(parties []string, svc user.Service, logger core.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if !authorizedParty(parties, claims.AuthorizedParty) {
				return errInvalidParty
			}
			if err := svc.EnsureUser(ctx.Request().Context(), claims.Subject); err != nil {
				logger.Warn("ensuring local user", err, core.LogPerson{ID: claims.Subject})
			}
			return next(ctx)
		}
	}
}

// authorizedParty reports whether azp is allowed; every party is when none is configured.
func authorizedParty(parties []string, azp string) bool {
	if len(parties) == 0 {
		return true
	}
	for _, p := range parties {
		if p == azp {
			return true
		}
	}
	return false
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextClaimsKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok && claims.Subject != "" {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextUserID returns the ID of the authenticated caller.
func getContextUserID(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// requireSelf checks that the caller is the user identified by id.
func requireSelf(ctx echo.Context, id string) (string, error) {
	callerID, err := getContextUserID(ctx)
	if err != nil {
		return "", err
	}
	if callerID != id {
		return "", errHttpForbidden
	}
	return callerID, nil
}
