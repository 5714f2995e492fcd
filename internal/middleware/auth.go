package middleware

import (
    "fmt"
    "net/http"
    "strings"

    "github.com/gin-gonic/gin"
    "github.com/golang-jwt/jwt/v5"
)

type AuthConfig struct {
    JWTSecret string
}

type Claims struct {
    UserID string `json:"user_id"`
    Email  string `json:"email"`
    jwt.RegisteredClaims
}

// AuthMiddleware validates an HS256 bearer token and stores its claims on the
// context. An empty secret disables the check.
func AuthMiddleware(cfg AuthConfig) gin.HandlerFunc {
    secret := []byte(cfg.JWTSecret)
    return func(c *gin.Context) {
        if len(secret) == 0 {
            c.Next()
            return
        }
        auth := c.GetHeader("Authorization")
        if auth == "" || !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
            // browsers cannot set headers on websocket upgrades
            if qs := c.Query("access_token"); qs != "" && websocketUpgrade(c) {
                auth = "Bearer " + qs
            } else {
                c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid authorization header"})
                return
            }
        }
        tokenStr := strings.TrimSpace(auth[len("Bearer "):])

        claims := &Claims{}
        token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
            if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
                return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
            }
            return secret, nil
        })
        if err != nil || !token.Valid {
            c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
            return
        }
        userID := claims.UserID
        if userID == "" {
            userID = claims.Subject
        }
        if userID == "" {
            c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token has no subject"})
            return
        }

        c.Set("user_id", userID)
        c.Set("claims", claims)
        c.Next()
    }
}

func websocketUpgrade(c *gin.Context) bool {
    return strings.EqualFold(c.GetHeader("Upgrade"), "websocket")
}
