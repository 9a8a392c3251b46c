package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/eshaffer321/invoice-match-backend/internal/api/dto"
)

// Role is the access level carried by a token.
type Role string

const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
)

// ClaimsKey is the gin context key holding the verified *Claims.
const ClaimsKey = "auth.claims"

// Claims represents JWT claims accepted by the API.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// NormalizeRole parses a role name.
func NormalizeRole(value string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleViewer:
		return RoleViewer, true
	case RoleOperator:
		return RoleOperator, true
	}
	return "", false
}

// allows reports whether a token role satisfies the required role.
func (r Role) allows(required Role) bool {
	if r == RoleOperator {
		return true
	}
	return r == required
}

// IssueToken signs an HS256 token for subject with the given role.
func IssueToken(secret []byte, subject string, role Role, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("auth: empty secret")
	}
	if _, ok := NormalizeRole(string(role)); !ok {
		return "", errors.New("auth: invalid role")
	}

	now := time.Now()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken validates an HS256 token and returns its claims.
func ParseToken(tokenString string, secret []byte) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("auth: empty token")
	}
	if len(secret) == 0 {
		return nil, errors.New("auth: empty secret")
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("auth: invalid token")
	}
	if _, ok := NormalizeRole(claims.Role); !ok {
		return nil, errors.New("auth: invalid role")
	}
	return claims, nil
}

// RequiredRole resolves the role needed for an HTTP method. Reads need a
// viewer, everything else an operator.
func RequiredRole(method string) Role {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return RoleViewer
	}
	return RoleOperator
}

// Auth returns middleware that requires a bearer token signed with secret.
// Missing or invalid tokens get 401, a role too weak for the method gets 403.
func Auth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(tokenString) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.UnauthorizedError("missing bearer token"))
			return
		}

		claims, err := ParseToken(strings.TrimSpace(tokenString), secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.UnauthorizedError("invalid token"))
			return
		}

		role, _ := NormalizeRole(claims.Role)
		if !role.allows(RequiredRole(c.Request.Method)) {
			c.AbortWithStatusJSON(http.StatusForbidden, dto.ForbiddenError())
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}
