package media

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/soma/core"
)

const videosPrefix = "videos"

var (
	videoTypeTag  = "videotype"
	videoTypeText = "must be a video MIME type"

	// errors
	errInvalidFileName = core.NewValidationError(nil, core.FieldError{Field: "fileName", Error: "invalid file name"})
)

type (
	// Presigner issues time-limited upload URLs to the object store.
	Presigner interface {
		PresignPut(ctx context.Context, key, contentType string, expires time.Duration) (string, error)
	}

	UploadRequest struct {
		FileName string `json:"fileName" validate:"required,notblank"`
		FileType string `json:"fileType" validate:"required,videotype"`
	}

	Upload struct {
		UploadURL string `json:"uploadUrl"`
		VideoURL  string `json:"videoUrl"`
	}

	Service interface {
		// NewVideoUpload returns a presigned PUT URL for a video and the URL it will be served from.
		NewVideoUpload(ctx context.Context, req UploadRequest) (Upload, error)
	}

	service struct {
		presigner Presigner
		cdnURL    string
		expires   time.Duration
		newID     func() string
	}
)

var _ Service = (*service)(nil)

func (ur *UploadRequest) Validate(validate *validator.Validate) error {
	ur.FileName = core.CleanString(ur.FileName)
	ur.FileType = core.CleanString(ur.FileType, true /* lower */)
	return validate.Struct(ur)
}

// InitValidators registers the media validation tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(videoTypeTag, func(fl validator.FieldLevel) bool {
		return strings.HasPrefix(fl.Field().String(), "video/")
	})
	core.RegisterCustomTranslation(validate, translator, videoTypeTag, videoTypeText)
}

func NewService(presigner Presigner, conf *core.Config) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(presigner, "presigner"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	return &service{
		presigner: presigner,
		cdnURL:    cdnBaseURL(conf.Storage.CloudfrontDomain),
		expires:   conf.Storage.UploadExpiration,
		newID:     func() string { return uuid.New().String() },
	}
}

// cdnBaseURL defaults the scheme of domain to https and drops trailing slashes.
func cdnBaseURL(domain string) string {
	domain = strings.TrimRight(strings.TrimSpace(domain), "/")
	if domain != "" && !strings.Contains(domain, "://") {
		domain = "https://" + domain
	}
	return domain
}

// baseName strips any directory from a client supplied file name.
func baseName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}

func (svc *service) NewVideoUpload(ctx context.Context, req UploadRequest) (Upload, error) {
	name := baseName(req.FileName)
	if name == "" {
		return Upload{}, errInvalidFileName
	}

	id := svc.newID()
	key := path.Join(videosPrefix, id, name)
	uploadURL, err := svc.presigner.PresignPut(ctx, key, req.FileType, svc.expires)
	if err != nil {
		return Upload{}, errors.Wrap(err, "presigning upload")
	}

	return Upload{
		UploadURL: uploadURL,
		VideoURL:  fmt.Sprintf("%s/%s/%s/%s", svc.cdnURL, videosPrefix, id, url.PathEscape(name)),
	}, nil
}
