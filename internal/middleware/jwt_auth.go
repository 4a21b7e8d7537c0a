package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/libaas-store/storefront/internal/domain"
)

// Context keys for storing caller info.
// UserIDKey is shared with the Firebase middleware so handlers read one key.
const (
	UserIDKey      = "userID"
	RolesKey       = "roles"
	StaffClaimsKey = "staff_claims"
)

// StaffTokenParser verifies a staff bearer token
type StaffTokenParser interface {
	ParseStaffToken(token string) (*domain.StaffClaims, error)
}

// VerifyStaffToken validates the staff JWT and stores its claims in the request locals
func VerifyStaffToken(parser StaffTokenParser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Missing authorization token",
			})
		}

		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid authorization header format, expected 'Bearer <token>'",
			})
		}

		claims, err := parser.ParseStaffToken(tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid or expired token",
			})
		}

		c.Locals(UserIDKey, claims.UserID)
		c.Locals(RolesKey, claims.Roles)
		c.Locals(StaffClaimsKey, claims)

		return c.Next()
	}
}

// AuthorizeRole checks if the caller has at least one of the required roles
func AuthorizeRole(allowedRoles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := c.Locals(StaffClaimsKey).(*domain.StaffClaims)
		if !ok || claims == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "No roles found in token",
			})
		}

		if claims.HasRole(allowedRoles...) {
			return c.Next()
		}

		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success":        false,
			"error":          "Insufficient permissions",
			"required_roles": allowedRoles,
		})
	}
}
