package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Nika0000/publisher-cli/internal/models"
	"github.com/Nika0000/publisher-cli/internal/update"
)

// CheckUpdate: client sends its installed version and platform, server
// responds with the first eligible update, if any.
func CheckUpdate(c *fiber.Ctx) error {
	var in struct {
		Version         string `json:"version"`
		OS              string `json:"os"`
		Arch            string `json:"arch"`
		Channel         string `json:"channel"`
		DeviceID        string `json:"deviceId"`
		AllowPrerelease bool   `json:"allowPrerelease"`
	}
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if in.Channel == "" {
		in.Channel = models.ChannelStable
	}
	res, err := update.CheckForUpdate(svc.DB(), update.Params{
		InstalledVersion: in.Version,
		OS:               in.OS,
		Arch:             in.Arch,
		Channel:          in.Channel,
		DeviceID:         in.DeviceID,
		AllowPrerelease:  in.AllowPrerelease,
	}, time.Now())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(res)
}
