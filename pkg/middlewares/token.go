package middlewares

import (
	t_token "daycare_messaging_service/pkg/token"

	"github.com/gofiber/fiber/v2"
)

const (
	//QueryToken token in query name
	QueryToken = "token"

	//CookieToken token in cookie name
	CookieToken = "auth_token"

	//TokenClaims parsed claims, set c.locals name
	TokenClaims = "claims"
	//TokenUserID get user form token, set c.locals name
	TokenUserID = "UserID"
	//TokenTenantID get tenant form token, set c.locals name
	TokenTenantID = "TenantID"
	//TokenRole get role form token, set c.locals name
	TokenRole = "role"
)

// ExtractToken read the credential from the Authorization header, the token query or the auth cookie
func ExtractToken(c *fiber.Ctx) string {
	if tokenStr := t_token.BearerToken(c.Get(fiber.HeaderAuthorization)); tokenStr != "" {
		return tokenStr
	}
	if tokenStr := c.Query(QueryToken); tokenStr != "" {
		return tokenStr
	}
	return c.Cookies(CookieToken)
}

// JWTMiddleware validates the JWT and stores the caller identity in c.Locals
func JWTMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := ExtractToken(c)
		if tokenStr == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing token",
			})
		}

		claims, err := t_token.ParseJWTWrapper(tokenStr)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		c.Locals(TokenClaims, claims)
		c.Locals(TokenUserID, claims.UserID)
		c.Locals(TokenTenantID, claims.TenantID)
		c.Locals(TokenRole, claims.Role)

		return c.Next()
	}
}

// ClaimsFrom return the claims stored by JWTMiddleware
func ClaimsFrom(c *fiber.Ctx) (*t_token.Claims, bool) {
	claims, ok := c.Locals(TokenClaims).(*t_token.Claims)
	return claims, ok && claims != nil
}
