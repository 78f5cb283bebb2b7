package echoapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/soma/core/media"
)

type mediaApi struct {
	svc      media.Service
	validate *validator.Validate
}

func registerMediaAPI(app *echo.Echo, authed []echo.MiddlewareFunc, svc media.Service, validate *validator.Validate) {
	api := mediaApi{svc: svc, validate: validate}

	app.PUT("/s3/upload-video-url", api.uploadVideoURL, authed...)
}

func (api *mediaApi) uploadVideoURL(ctx echo.Context) error {
	var data media.UploadRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UploadRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	upload, err := api.svc.NewVideoUpload(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "issuing video upload URL")
	}
	return ok(ctx, "Upload URL generate successfully!", upload)
}
