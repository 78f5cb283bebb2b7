package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/trezcool/soma/core"
	"github.com/trezcool/soma/core/course"
	"github.com/trezcool/soma/core/enrollment"
	"github.com/trezcool/soma/core/user"
)

var errHelp = errors.New("help provided")

const defaultPassword = "123456"

type commandLine struct {
	logger   core.Logger
	sqlDB    *sql.DB
	txRunner core.TxRunner
	purge    func(ctx context.Context, exec core.DBExecutor) error
	usrRepo  user.Repository
	crsRepo  course.Repository
	enrRepo  enrollment.Repository
	stdin    io.Reader
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose command (up, down, status, ...) over the embedded migrations")
	fmt.Println("  seed [-yes] [-password PASSWORD] - replace all courses, transactions and progress with the seed data")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	seedCmd := flag.NewFlagSet("seed", flag.ContinueOnError)
	seedYes := seedCmd.Bool("yes", false, "Do not ask for confirmation before deleting data.")
	seedPassword := seedCmd.String("password", defaultPassword, "The password of every seeded user.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "seed":
		if err := seedCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *seedPassword == "" {
			seedCmd.Usage()
			return errHelp
		}
		return cli.seed(context.Background(), *seedYes, *seedPassword)
	default:
		cli.printUsage()
		return errHelp
	}
}
