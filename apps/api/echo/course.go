package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/soma/core/course"
)

type courseApi struct {
	svc      course.Service
	validate *validator.Validate
}

func registerCourseAPI(app *echo.Echo, authed []echo.MiddlewareFunc, svc course.Service, validate *validator.Validate) {
	api := courseApi{svc: svc, validate: validate}

	cg := app.Group("/courses")

	// public endpoints
	cg.GET("", api.query)
	cg.GET("/:courseId", api.retrieve)

	// authed endpoints
	cg.POST("/create", api.create, authed...)
	cg.PUT("/update/:courseId", api.update, authed...)
	cg.DELETE("/delete/:courseId", api.destroy, authed...)
	cg.PUT("/:courseId/structure", api.saveStructure, authed...)

	cg.POST("/section/create", api.createSection, authed...)
	cg.PUT("/section/update/:sectionId", api.updateSection, authed...)
	cg.DELETE("/section/delete/:sectionId", api.destroySection, authed...)

	cg.POST("/chapter/create", api.createChapter, authed...)
	cg.PUT("/chapter/update/:chapterId", api.updateChapter, authed...)
	cg.DELETE("/chapter/delete/:chapterId", api.destroyChapter, authed...)
	cg.POST("/chapter/:chapterId/comments", api.addComment, authed...)
}

func (api *courseApi) query(ctx echo.Context) error {
	page, err := bindPage(ctx)
	if err != nil {
		return err
	}
	filter := course.QueryFilter{
		Category: ctx.QueryParam("category"),
		Search:   ctx.QueryParam("search"),
	}

	courses, err := api.svc.Query(ctx.Request().Context(), filter, page)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ok(ctx, "Courses retrieved successfully.", courses)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	crs, err := api.svc.Get(ctx.Request().Context(), ctx.Param("courseId"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	return ok(ctx, "Course retrieved successfully.", crs)
}

func (api *courseApi) create(ctx echo.Context) error {
	callerID, err := getContextUserID(ctx)
	if err != nil {
		return err
	}

	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	crs, err := api.svc.Create(ctx.Request().Context(), callerID, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return respond(ctx, http.StatusCreated, "Course created successfully.", crs)
}

func (api *courseApi) update(ctx echo.Context) error {
	callerID, err := getContextUserID(ctx)
	if err != nil {
		return err
	}

	var data course.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	crs, err := api.svc.Update(ctx.Request().Context(), callerID, ctx.Param("courseId"), data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ok(ctx, "Course updated successfully.", crs)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	callerID, err := getContextUserID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), callerID, ctx.Param("courseId")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ok(ctx, "Course deleted successfully.", nil)
}

func (api *courseApi) saveStructure(ctx echo.Context) error {
	callerID, err := getContextUserID(ctx)
	if err != nil {
		return err
	}

	var data course.Structure
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Structure")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	crs, err := api.svc.SaveStructure(ctx.Request().Context(), callerID, ctx.Param("courseId"), data)
	if err != nil {
		return errors.Wrap(err, "saving course structure")
	}
	return ok(ctx, "Course saved successfully.", crs)
}

// Sections

func (api *courseApi) createSection(ctx echo.Context) error {
	callerID, err := getContextUserID(ctx)
	if err != nil {
		return err
	}

	var data course.NewSection
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSection")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sec, err := api.svc.CreateSection(ctx.Request().Context(), callerID, data)
	if err != nil {
		return errors.Wrap(err, "creating section")
	}
	return respond(ctx, http.StatusCreated, "Section created successfully.", sec)
}

func (api *courseApi) updateSection(ctx echo.Context) error {
	callerID, err := getContextUserID(ctx)
	if err != nil {
		return err
	}

	var data course.UpdateSection
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSection")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sec, err := api.svc.UpdateSection(ctx.Request().Context(), callerID, ctx.Param("sectionId"), data)
	if err != nil {
		return errors.Wrap(err, "updating section")
	}
	return ok(ctx, "Section updated successfully.", sec)
}

func (api *courseApi) destroySection(ctx echo.Context) error {
	callerID, err := getContextUserID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteSection(ctx.Request().Context(), callerID, ctx.Param("sectionId")); err != nil {
		return errors.Wrap(err, "deleting section")
	}
	return ok(ctx, "Section deleted successfully.", nil)
}

// Chapters

func (api *courseApi) createChapter(ctx echo.Context) error {
	callerID, err := getContextUserID(ctx)
	if err != nil {
		return err
	}

	var data course.NewChapter
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewChapter")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ch, err := api.svc.CreateChapter(ctx.Request().Context(), callerID, data)
	if err != nil {
		return errors.Wrap(err, "creating chapter")
	}
	return respond(ctx, http.StatusCreated, "Chapter created successfully.", ch)
}

func (api *courseApi) updateChapter(ctx echo.Context) error {
	callerID, err := getContextUserID(ctx)
	if err != nil {
		return err
	}

	var data course.UpdateChapter
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateChapter")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ch, err := api.svc.UpdateChapter(ctx.Request().Context(), callerID, ctx.Param("chapterId"), data)
	if err != nil {
		return errors.Wrap(err, "updating chapter")
	}
	return ok(ctx, "Chapter updated successfully.", ch)
}

func (api *courseApi) destroyChapter(ctx echo.Context) error {
	callerID, err := getContextUserID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteChapter(ctx.Request().Context(), callerID, ctx.Param("chapterId")); err != nil {
		return errors.Wrap(err, "deleting chapter")
	}
	return ok(ctx, "Chapter deleted successfully.", nil)
}

func (api *courseApi) addComment(ctx echo.Context) error {
	callerID, err := getContextUserID(ctx)
	if err != nil {
		return err
	}

	var data course.NewComment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewComment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cmt, err := api.svc.AddComment(ctx.Request().Context(), callerID, ctx.Param("chapterId"), data)
	if err != nil {
		return errors.Wrap(err, "adding comment")
	}
	return respond(ctx, http.StatusCreated, "Comment added successfully.", cmt)
}
