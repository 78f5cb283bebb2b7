package echoapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/soma/core/course"
	"github.com/trezcool/soma/core/enrollment"
)

type progressApi struct {
	svc      enrollment.Service
	validate *validator.Validate
}

// registerProgressAPI serves the enrollments of the caller. Every endpoint is restricted to the user it names.
func registerProgressAPI(app *echo.Echo, authed []echo.MiddlewareFunc, svc enrollment.Service, validate *validator.Validate) {
	api := progressApi{svc: svc, validate: validate}

	pg := app.Group("/courses/progress")
	pg.GET("/user-enrolled-courses/:userId", api.queryEnrolledCourses, authed...)
	pg.GET("/user-course-progress", api.retrieve, authed...)
	pg.PUT("/user-course-progress", api.update, authed...)
}

func (api *progressApi) queryEnrolledCourses(ctx echo.Context) error {
	userID, err := requireSelf(ctx, ctx.Param("userId"))
	if err != nil {
		return err
	}

	courses, err := api.svc.QueryEnrolledCourses(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "querying enrolled courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ok(ctx, "Enrolled courses retrieved successfully.", courses)
}

func (api *progressApi) retrieve(ctx echo.Context) error {
	params, err := requiredQueryParams(ctx, "userId", "courseId")
	if err != nil {
		return err
	}
	userID, err := requireSelf(ctx, params[0])
	if err != nil {
		return err
	}

	p, err := api.svc.GetProgress(ctx.Request().Context(), userID, params[1])
	if err != nil {
		return errors.Wrap(err, "getting course progress")
	}
	return ok(ctx, "Course progress retrieved successfully.", p)
}

func (api *progressApi) update(ctx echo.Context) error {
	var data enrollment.ProgressUpdate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ProgressUpdate")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if _, err := requireSelf(ctx, data.UserID); err != nil {
		return err
	}

	p, err := api.svc.UpdateProgress(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "updating course progress")
	}
	return ok(ctx, "Course progress updated successfully.", p)
}
