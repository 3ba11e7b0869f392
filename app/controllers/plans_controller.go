package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bossboard/bossboard/internal/pkg/plans"
)

// HandlePlans returns the public plan catalog. Price ids are not exposed.
func HandlePlans(catalog *plans.Catalog) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderCacheControl, "public, max-age=300")
		return c.JSON(fiber.Map{"plans": catalog.All()})
	}
}
