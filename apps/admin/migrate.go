package main

import (
	"context"

	"github.com/trezcool/soma/storage/database"
)

var migrateFunc = database.Migrate // mockable

func (cli *commandLine) migrate(args []string) error {
	return migrateFunc(context.Background(), cli.sqlDB, args[0], args[1:]...)
}
