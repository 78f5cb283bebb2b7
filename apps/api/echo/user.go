package echoapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/soma/core/user"
)

type userApi struct {
	svc      user.Service
	validate *validator.Validate
}

func registerUserAPI(app *echo.Echo, authed []echo.MiddlewareFunc, svc user.Service, validate *validator.Validate) {
	api := userApi{svc: svc, validate: validate}

	ug := app.Group("/users")
	ug.GET("", api.query, authed...)
	ug.PUT("/clerk/:userId", api.updateMetadata, authed...)
}

func (api *userApi) query(ctx echo.Context) error {
	page, err := bindPage(ctx)
	if err != nil {
		return err
	}
	filter := user.QueryFilter{Search: ctx.QueryParam("search")}

	users, err := api.svc.Query(ctx.Request().Context(), filter, page)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ok(ctx, "Users retrieved successfully.", users)
}

func (api *userApi) updateMetadata(ctx echo.Context) error {
	callerID, err := getContextUserID(ctx)
	if err != nil {
		return err
	}

	var data user.UpdateMetadata
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMetadata")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.UpdateMetadata(ctx.Request().Context(), callerID, ctx.Param("userId"), data)
	if err != nil {
		return errors.Wrap(err, "updating user metadata")
	}
	return ok(ctx, "User metadata updated successfully.", p)
}
