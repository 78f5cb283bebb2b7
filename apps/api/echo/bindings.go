package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/soma/core"
)

// Response is the envelope of every successful response.
type Response struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func respond(ctx echo.Context, code int, message string, data interface{}) error {
	return ctx.JSON(code, Response{Message: message, Data: data})
}

func ok(ctx echo.Context, message string, data interface{}) error {
	return respond(ctx, http.StatusOK, message, data)
}

// bindPage reads the page & limit query params.
func bindPage(ctx echo.Context) (core.Pagination, error) {
	var page core.Pagination
	params := []struct {
		name string
		dest *int
	}{
		{"page", &page.Page},
		{"limit", &page.Limit},
	}

	var fldErrs []core.FieldError
	for _, p := range params {
		val := ctx.QueryParam(p.name)
		if val == "" {
			continue
		}
		n, err := strconv.Atoi(val)
		if err != nil || n < 0 {
			fldErrs = append(fldErrs, core.FieldError{Field: p.name, Error: "must be a positive integer"})
			continue
		}
		*p.dest = n
	}
	if fldErrs != nil {
		return core.Pagination{}, core.NewValidationError(nil, fldErrs...)
	}
	if err := page.Validate(); err != nil {
		return core.Pagination{}, err
	}
	return page, nil
}

// requiredQueryParams returns the values of the named query params, all of which must be set.
func requiredQueryParams(ctx echo.Context, names ...string) ([]string, error) {
	vals := make([]string, len(names))
	var fldErrs []core.FieldError
	for i, name := range names {
		vals[i] = core.CleanString(ctx.QueryParam(name))
		if vals[i] == "" {
			fldErrs = append(fldErrs, core.FieldError{Field: name, Error: "this field is required"})
		}
	}
	if fldErrs != nil {
		return nil, core.NewValidationError(nil, fldErrs...)
	}
	return vals, nil
}
