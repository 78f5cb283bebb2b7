package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgrijalva/jwt-go"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/trezcool/soma/core"
	"github.com/trezcool/soma/core/course"
	"github.com/trezcool/soma/core/enrollment"
	"github.com/trezcool/soma/core/media"
	"github.com/trezcool/soma/core/payment"
	"github.com/trezcool/soma/core/user"
)

type (
	// Deps are the domain services served by the API.
	Deps struct {
		UserSvc       user.Service
		CourseSvc     course.Service
		EnrollmentSvc enrollment.Service
		PaymentSvc    payment.Service
		MediaSvc      media.Service
	}

	Server struct {
		*http.Server
		conf       *core.Config
		app        *echo.Echo
		logger     core.Logger
		validate   *validator.Validate
		translator ut.Translator
		shutdown   chan os.Signal
		errors     chan error
	}
)

func NewServer(
	conf *core.Config,
	logger core.Logger,
	validate *validator.Validate,
	translator ut.Translator,
	deps *Deps,
) (*Server, error) {
	vala.BeginValidation().Validate(
		vala.IsNotNil(conf, "conf"),
		vala.IsNotNil(logger, "logger"),
		vala.IsNotNil(validate, "validate"),
		vala.IsNotNil(translator, "translator"),
		vala.IsNotNil(deps, "deps"),
		vala.IsNotNil(deps.UserSvc, "deps.UserSvc"),
		vala.IsNotNil(deps.CourseSvc, "deps.CourseSvc"),
		vala.IsNotNil(deps.EnrollmentSvc, "deps.EnrollmentSvc"),
		vala.IsNotNil(deps.PaymentSvc, "deps.PaymentSvc"),
		vala.IsNotNil(deps.MediaSvc, "deps.MediaSvc"),
	).CheckAndPanic()

	jwtKey, err := jwt.ParseRSAPublicKeyFromPEM([]byte(conf.Clerk.JWTKey))
	if err != nil {
		return nil, errors.Wrap(err, "parsing Clerk JWT public key")
	}

	app := echo.New()
	s := &Server{
		Server: &http.Server{
			Addr:         conf.Server.Address,
			Handler:      app,
			ReadTimeout:  conf.Server.ReadTimeout,
			WriteTimeout: conf.Server.WriteTimeout,
		},
		conf:       conf,
		app:        app,
		logger:     logger,
		validate:   validate,
		translator: translator,
		shutdown:   make(chan os.Signal, 1),
		errors:     make(chan error, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)

	s.setup(newAuthMiddleware(jwtKey, conf.Clerk.AuthorizedParties, deps.UserSvc, logger), deps)
	return s, nil
}

func (s *Server) setup(authed []echo.MiddlewareFunc, deps *Deps) {
	s.app.HideBanner = true
	s.app.Debug = s.conf.Debug

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     s.conf.Server.AllowedOrigins,
		AllowCredentials: true,
	}))
	if !s.conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.conf.Debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.logger, s.translator, s.SignalShutdown)

	s.app.GET("/", home)

	registerUserAPI(s.app, authed, deps.UserSvc, s.validate)
	registerCourseAPI(s.app, authed, deps.CourseSvc, s.validate)
	registerProgressAPI(s.app, authed, deps.EnrollmentSvc, s.validate)
	registerTransactionAPI(s.app, authed, deps.EnrollmentSvc, deps.PaymentSvc, s.validate, s.logger)
	registerMediaAPI(s.app, authed, deps.MediaSvc, s.validate)
	registerWebhookAPI(s.app, deps.PaymentSvc)
}

// Start listens for requests; a failure is reported on Errors.
func (s *Server) Start() {
	s.logger.Info("API listening on " + s.Addr)
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown asks the application to stop gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

// Shutdown stops accepting requests and waits for the outstanding ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Server.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Soma API!")
}
