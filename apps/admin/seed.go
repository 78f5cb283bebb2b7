package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/soma/core"
	"github.com/trezcool/soma/core/course"
	"github.com/trezcool/soma/core/enrollment"
	"github.com/trezcool/soma/core/user"
	appfs "github.com/trezcool/soma/fs"
)

var (
	isTerminalFunc = term.IsTerminal // mockable
	newIDFunc      = func() string { return uuid.New().String() }
	nowFunc        = time.Now

	errNotTerminal = errors.New("refusing to delete data without confirmation: use -yes")
	errAborted     = errors.New("aborted")
)

type (
	seedUser struct {
		UserID string `json:"userId"`
		Email  string `json:"email"`
		Name   string `json:"name"`
	}

	seedData struct {
		users        []seedUser
		courses      []course.Course
		transactions []enrollment.Transaction
		progress     []enrollment.UserCourseProgress
	}

	// idMap maps seed IDs to the IDs stored in the database.
	idMap map[string]string

	seedReport struct {
		users, courses, sections, chapters, comments, enrollments, transactions, progress int
	}
)

func (m idMap) remap(seedID string) string {
	id := newIDFunc()
	m[seedID] = id
	return id
}

func readSeed(name string, dest interface{}) error {
	b, err := fs.ReadFile(appfs.FS, path.Join(appfs.SeedDir, name))
	if err != nil {
		return pkgerrors.Wrapf(err, "reading %s", name)
	}
	return pkgerrors.Wrapf(json.Unmarshal(b, dest), "decoding %s", name)
}

func loadSeedData() (seedData, error) {
	var data seedData
	if err := readSeed("users.json", &data.users); err != nil {
		return data, err
	}
	if err := readSeed("course.json", &data.courses); err != nil {
		return data, err
	}
	if err := readSeed("transaction.json", &data.transactions); err != nil {
		return data, err
	}
	if err := readSeed("userCourseProgress.json", &data.progress); err != nil {
		return data, err
	}
	return data, nil
}

// confirm asks the operator before deleting data. Without a terminal on stdin, nobody can answer.
func (cli *commandLine) confirm() error {
	if !isTerminalFunc(int(os.Stdin.Fd())) {
		return errNotTerminal
	}
	fmt.Print("This deletes every course, transaction and progress record. Continue? [y/N]: ")
	answer, err := bufio.NewReader(cli.stdin).ReadString('\n')
	if err != nil && answer == "" {
		return errAborted
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return nil
	}
	return errAborted
}

func (cli *commandLine) seed(ctx context.Context, yes bool, password string) error {
	if !yes {
		if err := cli.confirm(); err != nil {
			return err
		}
	}

	data, err := loadSeedData()
	if err != nil {
		return err
	}

	var report seedReport
	err = cli.txRunner.RunInTx(ctx, func(exec core.DBExecutor) error {
		if err := cli.purge(ctx, exec); err != nil {
			return pkgerrors.Wrap(err, "purging data")
		}
		cli.logger.Info("Cleared courses, transactions and progress")

		users, err := cli.seedUsers(ctx, exec, data.users, password, &report)
		if err != nil {
			return err
		}
		courseIDs, sectionIDs, chapterIDs, err := cli.seedCourses(ctx, exec, data.courses, users, &report)
		if err != nil {
			return err
		}
		if err := cli.seedTransactions(ctx, exec, data.transactions, users, courseIDs, &report); err != nil {
			return err
		}
		return cli.seedProgress(ctx, exec, data.progress, users, courseIDs, sectionIDs, chapterIDs, &report)
	})
	if err != nil {
		return err
	}

	cli.logger.Info(fmt.Sprintf(
		"Seeded %d users, %d courses (%d sections, %d chapters, %d comments, %d enrollments), %d transactions, %d progress records",
		report.users, report.courses, report.sections, report.chapters, report.comments, report.enrollments,
		report.transactions, report.progress,
	))
	return nil
}

// seedUsers upserts the seed users with a hashed password and returns the set of their IDs.
// Identity provider IDs are kept as is.
func (cli *commandLine) seedUsers(ctx context.Context, exec core.DBExecutor, users []seedUser, password string, report *seedReport) (map[string]bool, error) {
	known := make(map[string]bool, len(users))
	now := nowFunc().UTC()
	for _, su := range users {
		usr := user.User{
			UserID:    core.CleanString(su.UserID),
			Email:     core.CleanString(su.Email, true /* lower */),
			Name:      core.CleanString(su.Name),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if usr.UserID == "" {
			cli.logger.Warn(fmt.Sprintf("skipping user %q: missing userId", su.Email))
			continue
		}
		if err := usr.SetPassword(password); err != nil {
			return nil, err
		}
		if _, err := cli.usrRepo.UpsertUser(ctx, usr, exec); err != nil {
			return nil, pkgerrors.Wrapf(err, "upserting user %s", usr.UserID)
		}
		known[usr.UserID] = true
		report.users++
	}
	return known, nil
}

func (cli *commandLine) seedCourses(
	ctx context.Context,
	exec core.DBExecutor,
	courses []course.Course,
	users map[string]bool,
	report *seedReport,
) (courseIDs, sectionIDs, chapterIDs idMap, err error) {
	courseIDs, sectionIDs, chapterIDs = make(idMap), make(idMap), make(idMap)
	now := nowFunc().UTC()

	for _, crs := range courses {
		seedID := crs.CourseID
		crs.CourseID = courseIDs.remap(seedID)
		if crs.CreatedAt.IsZero() {
			crs.CreatedAt = now
		}
		if crs.UpdatedAt.IsZero() {
			crs.UpdatedAt = crs.CreatedAt
		}
		if _, err = cli.crsRepo.CreateCourse(ctx, crs, exec); err != nil {
			return nil, nil, nil, pkgerrors.Wrapf(err, "creating course %s", seedID)
		}
		report.courses++

		for _, enr := range crs.Enrollments {
			if !users[enr.UserID] {
				cli.logger.Warn(fmt.Sprintf("course %s: skipping enrollment of unknown user %q", seedID, enr.UserID))
				continue
			}
			enr.ID = newIDFunc()
			enr.CourseID = crs.CourseID
			if _, err = cli.enrRepo.CreateEnrollment(ctx, enr, exec); err != nil {
				return nil, nil, nil, pkgerrors.Wrapf(err, "enrolling %s in course %s", enr.UserID, seedID)
			}
			report.enrollments++
		}

		for i, sec := range crs.Sections {
			sec.SectionID = sectionIDs.remap(sec.SectionID)
			sec.CourseID = crs.CourseID
			sec.Order = i
			if _, err = cli.crsRepo.CreateSection(ctx, sec, exec); err != nil {
				return nil, nil, nil, pkgerrors.Wrapf(err, "creating section %q", sec.SectionTitle)
			}
			report.sections++

			for j, ch := range sec.Chapters {
				ch.ChapterID = chapterIDs.remap(ch.ChapterID)
				ch.SectionID = sec.SectionID
				ch.Order = j
				if _, err = cli.crsRepo.CreateChapter(ctx, ch, exec); err != nil {
					return nil, nil, nil, pkgerrors.Wrapf(err, "creating chapter %q", ch.Title)
				}
				report.chapters++

				for _, cmt := range ch.Comments {
					if !users[cmt.UserID] {
						cli.logger.Warn(fmt.Sprintf("chapter %q: skipping comment of unknown user %q", ch.Title, cmt.UserID))
						continue
					}
					cmt.CommentID = newIDFunc()
					cmt.ChapterID = ch.ChapterID
					if cmt.Timestamp.IsZero() {
						cmt.Timestamp = now
					}
					if _, err = cli.crsRepo.CreateComment(ctx, cmt, exec); err != nil {
						return nil, nil, nil, pkgerrors.Wrapf(err, "creating comment on chapter %q", ch.Title)
					}
					report.comments++
				}
			}
		}
	}
	return courseIDs, sectionIDs, chapterIDs, nil
}

// seedTransactions keeps the payment processor IDs of the seed transactions.
func (cli *commandLine) seedTransactions(
	ctx context.Context,
	exec core.DBExecutor,
	txs []enrollment.Transaction,
	users map[string]bool,
	courseIDs idMap,
	report *seedReport,
) error {
	for _, tx := range txs {
		courseID, ok := courseIDs[tx.CourseID]
		switch {
		case tx.TransactionID == "":
			cli.logger.Warn("skipping transaction without transactionId")
			continue
		case !users[tx.UserID]:
			cli.logger.Warn(fmt.Sprintf("transaction %s: skipping unknown user %q", tx.TransactionID, tx.UserID))
			continue
		case !ok:
			cli.logger.Warn(fmt.Sprintf("transaction %s: skipping unknown course %q", tx.TransactionID, tx.CourseID))
			continue
		}
		tx.CourseID = courseID
		tx.PaymentProvider = core.CleanString(tx.PaymentProvider, true /* lower */)
		if _, err := cli.enrRepo.CreateTransaction(ctx, tx, exec); err != nil {
			return pkgerrors.Wrapf(err, "creating transaction %s", tx.TransactionID)
		}
		report.transactions++
	}
	return nil
}

func (cli *commandLine) seedProgress(
	ctx context.Context,
	exec core.DBExecutor,
	progress []enrollment.UserCourseProgress,
	users map[string]bool,
	courseIDs, sectionIDs, chapterIDs idMap,
	report *seedReport,
) error {
	for _, sp := range progress {
		courseID, ok := courseIDs[sp.CourseID]
		if !users[sp.UserID] || !ok {
			cli.logger.Warn(fmt.Sprintf("skipping progress of user %q in course %q: unknown user or course", sp.UserID, sp.CourseID))
			continue
		}

		upd := enrollment.ProgressUpdate{UserID: sp.UserID, CourseID: courseID}
		for _, sec := range sp.Sections {
			sectionID, ok := sectionIDs[sec.SectionID]
			if !ok {
				cli.logger.Warn(fmt.Sprintf("progress of user %q: skipping unknown section %q", sp.UserID, sec.SectionID))
				continue
			}
			su := enrollment.SectionProgressUpdate{SectionID: sectionID}
			for _, ch := range sec.Chapters {
				if chapterID, ok := chapterIDs[ch.ChapterID]; ok {
					su.Chapters = append(su.Chapters, enrollment.ChapterProgressUpdate{ChapterID: chapterID, Completed: ch.Completed})
				}
			}
			upd.Sections = append(upd.Sections, su)
		}

		crs, err := cli.crsRepo.GetCourseByID(ctx, courseID, exec)
		if err != nil {
			return pkgerrors.Wrapf(err, "getting course %s", courseID)
		}
		p := enrollment.NewProgress(crs, sp.UserID, sp.EnrollmentDate, newIDFunc)
		p.LastAccessedTimestamp = sp.LastAccessedTimestamp
		p.Merge(crs, upd, newIDFunc)
		if _, err := cli.enrRepo.CreateProgress(ctx, p, exec); err != nil {
			return pkgerrors.Wrapf(err, "creating progress of user %s in course %s", sp.UserID, courseID)
		}
		report.progress++
	}
	return nil
}
