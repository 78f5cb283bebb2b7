package user

import (
	"context"
	"sync"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/soma/core"
)

var (
	// errors
	ErrNotFound  = core.NewNotFoundError("user not found")
	ErrForbidden = core.NewForbiddenError("you can only update your own account")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		// QueryUsers applies QueryFilter.Search as a case-insensitive match on User.Name or User.Email.
		QueryUsers(ctx context.Context, filter QueryFilter, page core.Pagination, exec ...core.DBExecutor) ([]User, error)
		GetUserByID(ctx context.Context, id string, exec ...core.DBExecutor) (User, error)
		// UpsertUser inserts usr or updates its email and name.
		UpsertUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
	}

	// IdentityProvider is the service owning user accounts.
	IdentityProvider interface {
		GetUser(ctx context.Context, id string) (Profile, error)
		UpdatePublicMetadata(ctx context.Context, id string, md PublicMetadata) (Profile, error)
	}

	Service interface {
		Query(ctx context.Context, filter QueryFilter, page core.Pagination) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		// EnsureUser makes sure a local copy of the identity provider user exists.
		EnsureUser(ctx context.Context, id string) error
		UpdateMetadata(ctx context.Context, callerID, id string, um UpdateMetadata) (Profile, error)
	}

	service struct {
		repo  Repository
		idp   IdentityProvider
		known sync.Map // {userID: struct{}}
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, idp IdentityProvider) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(idp, "idp"),
	).CheckAndPanic()

	return &service{repo: repo, idp: idp}
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, page core.Pagination) ([]User, error) {
	filter.Clean()
	users, err := svc.repo.QueryUsers(ctx, filter, page)
	return users, errors.Wrap(err, "querying users")
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrNotFound
		}
		return User{}, errors.Wrap(err, "getting user")
	}
	return usr, nil
}

func (svc *service) EnsureUser(ctx context.Context, id string) error {
	if id == "" {
		return ErrNotFound
	}
	if _, ok := svc.known.Load(id); ok {
		return nil
	}

	_, err := svc.repo.GetUserByID(ctx, id)
	switch {
	case err == nil:
		svc.known.Store(id, struct{}{})
		return nil
	case errors.Cause(err) != ErrNotFound:
		return errors.Wrap(err, "getting user")
	}

	p, err := svc.idp.GetUser(ctx, id)
	if err != nil {
		return errors.Wrap(err, "getting identity provider user")
	}
	if err := svc.save(ctx, p); err != nil {
		return err
	}
	svc.known.Store(id, struct{}{})
	return nil
}

func (svc *service) save(ctx context.Context, p Profile) error {
	usr := p.toUser()
	now := NowFunc().UTC()
	usr.CreatedAt = now
	usr.UpdatedAt = now
	_, err := svc.repo.UpsertUser(ctx, usr)
	return errors.Wrap(err, "saving user")
}

func (svc *service) UpdateMetadata(ctx context.Context, callerID, id string, um UpdateMetadata) (Profile, error) {
	if callerID == "" || callerID != id {
		return Profile{}, ErrForbidden
	}

	p, err := svc.idp.UpdatePublicMetadata(ctx, id, um.PublicMetadata)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Profile{}, ErrNotFound
		}
		return Profile{}, errors.Wrap(err, "updating public metadata")
	}
	if err := svc.save(ctx, p); err != nil {
		return Profile{}, err
	}
	svc.known.Store(id, struct{}{})
	return p, nil
}
