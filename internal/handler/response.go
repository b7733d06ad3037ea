package handler

import (
	"github.com/labstack/echo/v4"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Status     string `json:"status"`
	Data       any    `json:"data,omitempty"`
	Message    string `json:"message,omitempty"`
	StatusCode int    `json:"status_code"`
}

func success(c echo.Context, statusCode int, data any, message string) error {
	return c.JSON(statusCode, Response{
		Status:     "success",
		Data:       data,
		Message:    message,
		StatusCode: statusCode,
	})
}

func fail(c echo.Context, statusCode int, message string) error {
	return c.JSON(statusCode, Response{
		Status:     "fail",
		Message:    message,
		StatusCode: statusCode,
	})
}
