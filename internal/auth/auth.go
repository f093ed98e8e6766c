// Package auth verifies bearer tokens and scopes requests to an outlet
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"

	"cafepos/internal/models"
)

const (
	identityKey = "cafepos.identity"
	outletKey   = "cafepos.outlet"

	// OutletHeader selects the outlet a request acts on
	OutletHeader = "X-Outlet-ID"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrNoIdentity     = errors.New("request has no identity")
	ErrMissingSubject = errors.New("token subject is required")
)

// Claims carried by a POS token
type Claims struct {
	Name    string      `json:"name"`
	Role    models.Role `json:"role"`
	Outlets []string    `json:"outlets,omitempty"`
	jwt.StandardClaims
}

// Issue signs a token for the identity
func Issue(secret string, id models.Identity, ttl time.Duration) (string, error) {
	if id.UserID == "" {
		return "", ErrMissingSubject
	}
	now := time.Now()
	claims := Claims{
		Name:    id.Name,
		Role:    id.Role,
		Outlets: id.Outlets,
		StandardClaims: jwt.StandardClaims{
			Subject:   id.UserID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
			Issuer:    "cafepos",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Parse verifies a token and returns its identity
func Parse(secret, tokenString string) (models.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return models.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return models.Identity{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return models.Identity{}, ErrMissingSubject
	}
	return models.Identity{
		UserID:  claims.Subject,
		Name:    claims.Name,
		Role:    claims.Role,
		Outlets: claims.Outlets,
	}, nil
}

// Middleware rejects requests without a valid bearer token. Websocket
// clients that cannot set headers pass the token as ?token=.
func Middleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		id, err := Parse(secret, tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

// OutletScope resolves the outlet of the request from the X-Outlet-ID header,
// falling back to the only outlet of a single-outlet user
func OutletScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": ErrNoIdentity.Error()})
			c.Abort()
			return
		}

		outletID := c.GetHeader(OutletHeader)
		if outletID == "" {
			outletID = c.Query("outlet")
		}
		if outletID == "" && len(id.Outlets) == 1 {
			outletID = id.Outlets[0]
		}
		if outletID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": OutletHeader + " header required"})
			c.Abort()
			return
		}
		if !id.CanAccess(outletID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "no access to outlet " + outletID})
			c.Abort()
			return
		}

		c.Set(outletKey, outletID)
		c.Next()
	}
}

// RequireRole allows only the given roles through
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok || !id.HasRole(roles...) {
			c.JSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// IdentityFrom returns the identity stored by Middleware
func IdentityFrom(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return models.Identity{}, false
	}
	id, ok := v.(models.Identity)
	return id, ok
}

// OutletFrom returns the outlet stored by OutletScope
func OutletFrom(c *gin.Context) string {
	return c.GetString(outletKey)
}
