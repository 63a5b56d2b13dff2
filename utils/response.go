package utils

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"taskhub/apperr"
)

// ErrorResponse creates a standardized error response
func ErrorResponse(c *fiber.Ctx, status int, message string, err error) error {
	response := fiber.Map{
		"success": false,
		"error":   message,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	return c.Status(status).JSON(response)
}

// SuccessResponse creates a standardized success response
func SuccessResponse(data interface{}) fiber.Map {
	return fiber.Map{
		"success": true,
		"data":    data,
	}
}

// PaginatedResponse structure for paginated results
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int64       `json:"total_pages"`
}

func NewPaginatedResponse(data interface{}, total int64, page, limit int) PaginatedResponse {
	pages := int64(0)
	if limit > 0 {
		pages = (total + int64(limit) - 1) / int64(limit)
	}
	return PaginatedResponse{Data: data, Total: total, Page: page, Limit: limit, TotalPages: pages}
}

// RespondError writes err with the status of its kind. Validation errors carry
// their field messages, internal errors are logged and reported and their
// details withheld.
func RespondError(c *fiber.Ctx, err error) error {
	kind := apperr.KindOf(err)

	if kind == apperr.Internal {
		LogError("request_failed", err, map[string]interface{}{
			"method": c.Method(),
			"path":   c.Path(),
		})
		return ErrorResponse(c, kind.HTTPStatus(), "Internal server error", nil)
	}

	message := err.Error()
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		message = appErr.Message()
	}

	response := fiber.Map{
		"success": false,
		"error":   message,
		"kind":    kind.String(),
	}
	if fields := apperr.FieldsOf(err); len(fields) > 0 {
		response["details"] = fields
	}
	return c.Status(kind.HTTPStatus()).JSON(response)
}

// ErrorHandler is the fiber error handler: fiber errors keep their code, every
// other error goes through RespondError.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return ErrorResponse(c, fiberErr.Code, fiberErr.Message, nil)
	}
	return RespondError(c, err)
}

// ParseID reads a positive numeric route parameter.
func ParseID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil || id == 0 {
		return 0, apperr.New(apperr.ValidationFailed, "invalid "+name,
			apperr.WithField(name, name+" must be a positive integer"))
	}
	return uint(id), nil
}
