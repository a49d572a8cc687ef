package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Nika0000/publisher-cli/internal/manifest"
	"github.com/Nika0000/publisher-cli/internal/models"
)

// GetLatestManifest serves the "latest per channel" manifest, built
// fresh from the store so it never lags behind a failed regeneration.
func GetLatestManifest(c *fiber.Ctx) error {
	channel := c.Params("channel")
	if err := models.AssertValidChannel(channel); err != nil {
		return httpError(err)
	}
	m, err := manifest.BuildLatestManifest(svc.DB(), channel)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(m)
}

// GetVersionManifest serves one version's manifest.
func GetVersionManifest(c *fiber.Ctx) error {
	channel := c.Params("channel")
	if err := models.AssertValidChannel(channel); err != nil {
		return httpError(err)
	}
	m, err := manifest.BuildVersionManifest(svc.DB(), c.Params("version"), channel)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(m)
}
