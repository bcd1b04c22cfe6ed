package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hivefi/ledger/internal/utils"
)

// AuthMiddleware rejects requests without a valid HS256 bearer token.
// When issuer is non-empty the token's iss claim must match it. The token
// subject is stored in the request context and added to the request logger.
func AuthMiddleware(jwtSecret, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := GetLoggerFromCtx(c.Request.Context())

		scheme, tokenString, found := strings.Cut(c.GetHeader("Authorization"), " ")
		switch {
		case scheme == "" && !found:
			logger.Warn("Authorization header missing")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		case !found || !strings.EqualFold(scheme, "bearer") || tokenString == "":
			logger.Warn("Authorization header format invalid")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		claims, err := utils.ParseAndValidateJWT(strings.TrimSpace(tokenString), jwtSecret, issuer)
		if err != nil {
			logger.Warn("Rejected bearer token", slog.String("error", err.Error()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": tokenErrorMessage(err)})
			return
		}

		ctx := context.WithValue(c.Request.Context(), subjectKey, claims.Subject)
		ctx = WithLogger(ctx, logger.With(slog.String("subject", claims.Subject)))
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func tokenErrorMessage(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "Token has expired"
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return "Token not valid yet"
	case errors.Is(err, utils.ErrEmptySubject):
		return "Invalid token claims"
	}
	return "Invalid token"
}
