package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Nika0000/publisher-cli/internal/release"
)

// PublishVersion publishes a version. With ?fallback=auto, missing
// required installer slots are filled from the newest candidate in the
// channel; otherwise they are left empty and reported back.
func PublishVersion(c *fiber.Ctx) error {
	opts := release.PublishOptions{}
	if c.Query("fallback") == "auto" {
		opts.PickFallback = func(_ release.Slot, candidates []release.FallbackCandidate) *release.FallbackCandidate {
			return &candidates[0]
		}
	}
	res, err := svc.Publish(c.Context(), c.Params("version"), c.Params("channel"), opts)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(fiber.Map{
		"version":   res.Version.VersionName,
		"channel":   res.Version.ReleaseChannel,
		"fallbacks": len(res.AssignedFallbacks),
		"missing":   res.MissingSlots,
		"warnings":  res.Warnings,
	})
}

// RegenerateManifest rebuilds a version's manifest and the channel's
// latest manifest.
func RegenerateManifest(c *fiber.Ctx) error {
	if err := svc.RegenerateManifest(c.Context(), c.Params("version"), c.Params("channel")); err != nil {
		return httpError(err)
	}
	return c.JSON(fiber.Map{"ok": true})
}
