package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// AuthzConfig configures bearer-token checks. MethodPermissions maps an HTTP
// method to the permission a token must carry to use it; methods missing
// from the map only need a valid token.
type AuthzConfig struct {
	Secret            string
	Issuer            string
	MethodPermissions map[string]string
}

// DefaultMethodPermissions splits todo access into read and write.
func DefaultMethodPermissions() map[string]string {
	return map[string]string{
		http.MethodGet:    "todos:read",
		http.MethodPost:   "todos:write",
		http.MethodPut:    "todos:write",
		http.MethodDelete: "todos:write",
	}
}

const (
	SubjectKey     = "subject"
	PermissionsKey = "permissions"
)

func abortAuth(c *gin.Context, status int, reason, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":   reason,
		"message": message,
	})
}

func AuthzMiddleware(config AuthzConfig) gin.HandlerFunc {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	parser := jwt.NewParser(opts...)
	secret := []byte(config.Secret)

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortAuth(c, http.StatusUnauthorized, "Unauthorized", "Authorization header is required")
			return
		}

		tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			abortAuth(c, http.StatusUnauthorized, "Unauthorized", "Authorization header must use Bearer token")
			return
		}

		claims := jwt.MapClaims{}
		_, err := parser.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
			return secret, nil
		})
		if err != nil {
			message := "Token validation failed"
			switch {
			case errors.Is(err, jwt.ErrTokenExpired):
				message = "Token has expired"
			case errors.Is(err, jwt.ErrTokenInvalidIssuer):
				message = "Token issuer is invalid"
			}
			abortAuth(c, http.StatusUnauthorized, "Unauthorized", message)
			return
		}

		granted := map[string]bool{}
		if perms, ok := claims["permissions"].([]interface{}); ok {
			for _, p := range perms {
				if ps, ok := p.(string); ok {
					granted[ps] = true
				}
			}
		}

		if required, ok := config.MethodPermissions[c.Request.Method]; ok && !granted[required] {
			abortAuth(c, http.StatusForbidden, "Forbidden", "Token does not have required permission: "+required)
			return
		}

		subject, _ := claims.GetSubject()
		c.Set(SubjectKey, subject)
		c.Set(PermissionsKey, granted)

		c.Next()
	}
}
