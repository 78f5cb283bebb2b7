package main

import (
	"log"
	"os"

	"github.com/trezcool/soma/core"
	logsvc "github.com/trezcool/soma/services/logger"
	"github.com/trezcool/soma/storage/database"
	sqlxrepos "github.com/trezcool/soma/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	stdLogger := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}

	// start CLI
	cli := commandLine{
		logger:   logger,
		sqlDB:    db.DB,
		txRunner: core.NewTxRunner(db),
		purge:    database.Purge,
		usrRepo:  sqlxrepos.NewUserRepository(db),
		crsRepo:  sqlxrepos.NewCourseRepository(db),
		enrRepo:  sqlxrepos.NewEnrollmentRepository(db),
		stdin:    os.Stdin,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			stdLogger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
