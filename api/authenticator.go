package api

import (
	"context"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/api/apicommon"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/errors"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// authenticator is a middleware that checks the JWT token verified by
// jwtauth. The token must carry a subject; its optional role claim decides
// which actions the caller may run. The caller is added to the request
// context for the next handlers.
func (a *API) authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			errors.ErrUnauthorized.WithErr(err).Write(w)
			return
		}
		if token == nil || jwt.Validate(token, jwt.WithRequiredClaim(jwt.SubjectKey)) != nil {
			errors.ErrUnauthorized.Withf("sub claim not found in JWT token").Write(w)
			return
		}
		caller := apicommon.Caller{Subject: token.Subject(), Role: apicommon.RoleAuthenticated}
		if role, ok := claims["role"].(string); ok && role != "" {
			caller.Role = role
		}
		ctx := context.WithValue(r.Context(), apicommon.CallerMetadataKey, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// tokenFromQuery reads the token from the token query parameter, used by
// browsers that cannot set headers on websocket connections.
func tokenFromQuery(r *http.Request) string {
	return r.URL.Query().Get("token")
}
