package utils

import (
	"github.com/labstack/echo/v4"

	dedupeerrors "github.com/Ramsey-B/clover/pkg/errors"
)

// BindRequest binds path, query and body values into T and validates it.
func BindRequest[T any](c echo.Context) (T, error) {
	var v T

	if err := c.Bind(&v); err != nil {
		return v, dedupeerrors.InvalidInput("invalid request: %v", err)
	}

	if v, err := Validate(v); err != nil {
		return v, dedupeerrors.InvalidInput("%v", err)
	}

	return v, nil
}
