package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/Nika0000/publisher-cli/internal/models"
	"github.com/Nika0000/publisher-cli/internal/release"
)

var svc *release.Service

// Init wires the release service used by all handlers.
func Init(s *release.Service) { svc = s }

// httpError maps service errors onto HTTP statuses.
func httpError(err error) error {
	switch {
	case errors.Is(err, models.ErrUnsupported):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, release.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, release.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return fiber.ErrInternalServerError
	}
}
