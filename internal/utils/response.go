package utils

import "github.com/gofiber/fiber/v3"

// SuccessResponse sends a standardized success response
func SuccessResponse(c fiber.Ctx, data interface{}) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// CreatedResponse sends a standardized 201 response
func CreatedResponse(c fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// ListResponse sends a collection with its total count
func ListResponse(c fiber.Ctx, data interface{}, total int) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
		"total":   total,
	})
}
