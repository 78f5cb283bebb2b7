package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/soma/apps/api/echo"
	"github.com/trezcool/soma/core"
	"github.com/trezcool/soma/core/course"
	"github.com/trezcool/soma/core/enrollment"
	"github.com/trezcool/soma/core/media"
	"github.com/trezcool/soma/core/payment"
	"github.com/trezcool/soma/core/user"
	emailsvc "github.com/trezcool/soma/services/email"
	identitysvc "github.com/trezcool/soma/services/identity"
	logsvc "github.com/trezcool/soma/services/logger"
	paymentsvc "github.com/trezcool/soma/services/payment"
	storagesvc "github.com/trezcool/soma/services/storage"
	"github.com/trezcool/soma/storage/database"
	sqlxrepos "github.com/trezcool/soma/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DB, core.DBExecutor) {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(context.Background(), db.DB, "up"); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db, db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	course.InitValidators(validate, translator)
	enrollment.InitValidators(validate, translator)
	media.InitValidators(validate, translator)
	return validate
}

func newIdentityProvider(conf *core.Config) user.IdentityProvider {
	return identitysvc.NewClerkProvider(conf)
}

func newEnrollmentService(
	repo enrollment.Repository,
	courses course.Repository,
	users user.Repository,
	txRunner core.TxRunner,
	mailSvc core.EmailService,
	logger core.Logger,
) enrollment.Service {
	return enrollment.NewService(repo, courses, users, txRunner, mailSvc, logger)
}

func newPaymentService(gateway payment.Gateway, enrollmentSvc enrollment.Service, logger core.Logger, conf *core.Config) payment.Service {
	return payment.NewService(gateway, enrollmentSvc, logger, conf)
}

type serverParams struct {
	dig.In

	Conf          *core.Config
	Logger        core.Logger
	Validate      *validator.Validate
	Translator    ut.Translator
	UserSvc       user.Service
	CourseSvc     course.Service
	EnrollmentSvc enrollment.Service
	PaymentSvc    payment.Service
	MediaSvc      media.Service
}

func newServer(p serverParams) (*echoapi.Server, error) {
	return echoapi.NewServer(p.Conf, p.Logger, p.Validate, p.Translator, &echoapi.Deps{
		UserSvc:       p.UserSvc,
		CourseSvc:     p.CourseSvc,
		EnrollmentSvc: p.EnrollmentSvc,
		PaymentSvc:    p.PaymentSvc,
		MediaSvc:      p.MediaSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(core.NewTxRunner))
	must(c.Provide(newEmailService))
	must(c.Provide(newTranslator))
	must(c.Provide(newValidator))

	// repositories
	must(c.Provide(sqlxrepos.NewUserRepository))
	must(c.Provide(sqlxrepos.NewCourseRepository))
	must(c.Provide(sqlxrepos.NewEnrollmentRepository))

	// third-party adapters
	must(c.Provide(newIdentityProvider))
	must(c.Provide(paymentsvc.NewStripeGateway))
	must(c.Provide(storagesvc.NewS3Presigner))

	// services
	must(c.Provide(user.NewService))
	must(c.Provide(course.NewService))
	must(c.Provide(newEnrollmentService))
	must(c.Provide(newPaymentService))
	must(c.Provide(media.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
