package identitysvc

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/clerk/clerk-sdk-go/v2"
	clerkuser "github.com/clerk/clerk-sdk-go/v2/user"
	"github.com/pkg/errors"

	"github.com/trezcool/soma/core"
	"github.com/trezcool/soma/core/user"
)

type clerkProvider struct {
	client *clerkuser.Client
}

var _ user.IdentityProvider = (*clerkProvider)(nil)

// NewClerkProvider returns an IdentityProvider backed by the Clerk Backend API.
// apiURL overrides the Clerk API base URL when not empty.
func NewClerkProvider(conf *core.Config, apiURL ...string) user.IdentityProvider {
	cfg := &clerk.ClientConfig{}
	cfg.Key = clerk.String(conf.Clerk.SecretKey)
	if len(apiURL) > 0 && apiURL[0] != "" {
		cfg.URL = clerk.String(apiURL[0])
	}
	return &clerkProvider{client: clerkuser.NewClient(cfg)}
}

func (p clerkProvider) GetUser(ctx context.Context, id string) (user.Profile, error) {
	usr, err := p.client.Get(ctx, id)
	if err != nil {
		return user.Profile{}, trapClerkErr(err, "getting clerk user")
	}
	return toProfile(usr), nil
}

func (p clerkProvider) UpdatePublicMetadata(ctx context.Context, id string, md user.PublicMetadata) (user.Profile, error) {
	raw, err := json.Marshal(md)
	if err != nil {
		return user.Profile{}, errors.Wrap(err, "encoding public metadata")
	}
	rm := json.RawMessage(raw)

	usr, err := p.client.UpdateMetadata(ctx, id, &clerkuser.UpdateMetadataParams{PublicMetadata: &rm})
	if err != nil {
		return user.Profile{}, trapClerkErr(err, "updating clerk user metadata")
	}
	return toProfile(usr), nil
}

func trapClerkErr(err error, msg string) error {
	var apiErr *clerk.APIErrorResponse
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusNotFound {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func toProfile(usr *clerk.User) user.Profile {
	p := user.Profile{ID: usr.ID}

	var names []string
	for _, n := range []*string{usr.FirstName, usr.LastName} {
		if n != nil && strings.TrimSpace(*n) != "" {
			names = append(names, strings.TrimSpace(*n))
		}
	}
	p.Name = strings.Join(names, " ")
	if p.Name == "" && usr.Username != nil {
		p.Name = *usr.Username
	}

	for _, addr := range usr.EmailAddresses {
		if addr == nil {
			continue
		}
		if p.Email == "" || (usr.PrimaryEmailAddressID != nil && addr.ID == *usr.PrimaryEmailAddressID) {
			p.Email = addr.EmailAddress
		}
	}

	if len(usr.PublicMetadata) > 0 {
		var md user.PublicMetadata
		if err := json.Unmarshal(usr.PublicMetadata, &md); err == nil {
			p.UserType = md.UserType
			p.Settings = md.Settings
		}
	}
	return p
}
