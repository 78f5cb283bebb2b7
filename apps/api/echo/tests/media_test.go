package tests

import (
	"net/http"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/soma/core/media"
)

func Test_mediaApi_uploadVideoURL(t *testing.T) {
	app := setup(t)
	token := getToken(t, "user_teacher")
	path := "/s3/upload-video-url"

	runHTTPTests(t, app, []httpTest{
		{
			name: "Auth required", method: http.MethodPut, path: path, body: []byte(`{"fileName": "a.mp4", "fileType": "video/mp4"}`),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "not a video", method: http.MethodPut, path: path, body: []byte(`{"fileName": "a.pdf", "fileType": "application/pdf"}`),
			token: token, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"fileType": "must be a video MIME type"}),
		},
		{
			name: "missing name", method: http.MethodPut, path: path, body: []byte(`{"fileType": "video/mp4"}`),
			token: token, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"fileName": "this field is required"}),
		},
	})

	req, rec := newAuthRequest(http.MethodPut, path, token, []byte(`{"fileName": "../intro.mp4", "fileType": "video/mp4"}`))
	app.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"message":"Upload URL generate successfully!"`)

	var upload media.Upload
	unmarchallData(t, rec, &upload)
	assert.Regexp(t, regexp.MustCompile(`^https://s3\.test/videos/[0-9a-f-]{36}/intro\.mp4\?type=video/mp4&expires=1m0s$`), upload.UploadURL)
	assert.Regexp(t, regexp.MustCompile(`^https://cdn\.soma\.test/videos/[0-9a-f-]{36}/intro\.mp4$`), upload.VideoURL)
}
