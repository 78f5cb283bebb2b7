package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/soma/core"
	"github.com/trezcool/soma/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) QueryUsers(_ context.Context, filter user.QueryFilter, page core.Pagination, _ ...core.DBExecutor) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	search := strings.ToLower(filter.Search)
	users := make([]user.User, 0, len(repo.db.users))
	for _, usr := range repo.db.users {
		if search == "" ||
			strings.Contains(strings.ToLower(usr.Name), search) ||
			strings.Contains(strings.ToLower(usr.Email), search) {
			users = append(users, usr)
		}
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Name != users[j].Name {
			return users[i].Name < users[j].Name
		}
		return users[i].UserID < users[j].UserID
	})

	start, end := page.Window(len(users))
	return users[start:end], nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id string, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if usr, ok := repo.db.users[id]; ok {
		return usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpsertUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if orig, ok := repo.db.users[usr.UserID]; ok {
		orig.Email = usr.Email
		orig.Name = usr.Name
		orig.UpdatedAt = usr.UpdatedAt
		if usr.PasswordHash != "" {
			orig.PasswordHash = usr.PasswordHash
		}
		usr = orig
	}
	repo.db.users[usr.UserID] = usr
	return usr, nil
}
