package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// tokenIssuer はトークンの発行者。検証時にも一致を確認する。
const tokenIssuer = "paqueteria"

// コンテキストキー。
const (
	contextKeyUserID = "user_id"
	contextKeyRole   = "role"
)

// JWTClaims はJWTトークンのクレーム。
type JWTClaims struct {
	jwt.RegisteredClaims
	// UserID は usuarios コレクションのユーザーID。
	UserID string `json:"userId"`
	// Role は cliente または repartidor。
	Role string `json:"rol"`
}

// GenerateJWT はユーザー情報から24時間有効なJWTトークンを生成する。
func GenerateJWT(secret, userID, role string) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
		UserID: userID,
		Role:   role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// JWTAuth はBearerトークンを検証するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストにユーザーIDとロールを設定する。
func JWTAuth(secret string) gin.HandlerFunc {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
	)

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "Se requiere el encabezado Authorization")
			return
		}

		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			abort(c, http.StatusUnauthorized, "Formato de token Bearer inválido")
			return
		}

		claims := &JWTClaims{}
		token, err := parser.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
			return []byte(secret), nil
		})
		if err != nil || !token.Valid || claims.UserID == "" {
			abort(c, http.StatusUnauthorized, "Token inválido")
			return
		}

		c.Set(contextKeyUserID, claims.UserID)
		c.Set(contextKeyRole, claims.Role)
		c.Next()
	}
}

// GetUserID はGinコンテキストからユーザーIDを取得する。
// JWTAuthミドルウェアが事前に適用されている必要がある。
func GetUserID(c *gin.Context) string {
	return c.GetString(contextKeyUserID)
}

// GetRole はGinコンテキストからロールを取得する。
func GetRole(c *gin.Context) string {
	return c.GetString(contextKeyRole)
}

// abort はエラーレスポンスを返してチェーンを中断する。
func abort(c *gin.Context, status int, mensaje string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"mensaje": mensaje,
	})
}
