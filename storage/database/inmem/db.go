package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/soma/core"
	"github.com/trezcool/soma/core/course"
	"github.com/trezcool/soma/core/enrollment"
	"github.com/trezcool/soma/core/user"
)

type (
	tables struct {
		users        map[string]user.User
		courses      map[string]course.Course // without sections & enrollments
		sections     map[string]course.Section // without chapters
		chapters     map[string]course.Chapter // without comments
		comments     map[string]course.Comment
		enrollments  map[string]course.Enrollment
		transactions map[string]enrollment.Transaction
		progress     map[string]enrollment.UserCourseProgress
	}

	// DB is an in-memory store implementing the repositories and core.TxRunner.
	// Stored values never share slices with the values handed to callers.
	DB struct {
		mutex sync.RWMutex
		txMu  sync.Mutex
		tables
	}
)

var _ core.TxRunner = (*DB)(nil)

func Open() *DB {
	return &DB{tables: newTables()}
}

func newTables() tables {
	return tables{
		users:        make(map[string]user.User),
		courses:      make(map[string]course.Course),
		sections:     make(map[string]course.Section),
		chapters:     make(map[string]course.Chapter),
		comments:     make(map[string]course.Comment),
		enrollments:  make(map[string]course.Enrollment),
		transactions: make(map[string]enrollment.Transaction),
		progress:     make(map[string]enrollment.UserCourseProgress),
	}
}

func (t tables) clone() tables {
	c := newTables()
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.courses {
		c.courses[k] = v
	}
	for k, v := range t.sections {
		c.sections[k] = v
	}
	for k, v := range t.chapters {
		c.chapters[k] = v
	}
	for k, v := range t.comments {
		c.comments[k] = v
	}
	for k, v := range t.enrollments {
		c.enrollments[k] = v
	}
	for k, v := range t.transactions {
		c.transactions[k] = v
	}
	for k, v := range t.progress {
		c.progress[k] = v
	}
	return c
}

// RunInTx runs transactions one at a time and restores the previous state when fn fails.
// The executor given to fn is nil: repositories of this package ignore it.
func (db *DB) RunInTx(_ context.Context, fn func(exec core.DBExecutor) error) (err error) {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mutex.RLock()
	snapshot := db.tables.clone()
	db.mutex.RUnlock()

	restore := func() {
		db.mutex.Lock()
		db.tables = snapshot
		db.mutex.Unlock()
	}
	defer func() {
		if p := recover(); p != nil {
			restore()
			panic(p)
		}
	}()

	if err = fn(nil); err != nil {
		restore()
	}
	return err
}

// Reset empties every table.
func (db *DB) Reset() {
	db.mutex.Lock()
	db.tables = newTables()
	db.mutex.Unlock()
}

// Purge empties every table but users.
func (db *DB) Purge(_ context.Context, _ core.DBExecutor) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	users := db.users
	db.tables = newTables()
	db.users = users
	return nil
}
