package tests

import (
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/trezcool/soma/core/user"
	"github.com/trezcool/soma/tests"
)

func Test_userApi_query(t *testing.T) {
	app := setup(t)

	path := func(search string, page, limit int) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if page > 0 {
			v.Add("page", strconv.Itoa(page))
		}
		if limit > 0 {
			v.Add("limit", strconv.Itoa(limit))
		}
		return "/users?" + v.Encode()
	}

	now := time.Now()
	alice := testutil.CreateUser(t, app.usrRepo, "user_a", "Alice", "alice@test.io", now.Add(-3*time.Hour))
	bob := testutil.CreateUser(t, app.usrRepo, "user_b", "Bob", "bob@test.io", now.Add(-2*time.Hour))
	carol := testutil.CreateUser(t, app.usrRepo, "user_c", "Carol", "carol@alice.dev", now.Add(-1*time.Hour))

	token := getToken(t, alice.UserID)
	msg := "Users retrieved successfully."

	runHTTPTests(t, app, []httpTest{
		{name: "Auth required", path: "/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Get all", path: "/users", token: token, wantCode: http.StatusOK, wantData: marchallResp(t, msg, []user.User{alice, bob, carol})},
		{name: "search (unknown)", path: path("zed", 0, 0), token: token, wantCode: http.StatusOK, wantData: marchallResp(t, msg, []user.User{})},
		{
			name: "search name or email", path: path("ALICE", 0, 0), token: token, wantCode: http.StatusOK,
			wantData: marchallResp(t, msg, []user.User{alice, carol}),
		},
		{name: "limit", path: path("", 1, 2), token: token, wantCode: http.StatusOK, wantData: marchallResp(t, msg, []user.User{alice, bob})},
		{name: "page 2", path: path("", 2, 2), token: token, wantCode: http.StatusOK, wantData: marchallResp(t, msg, []user.User{carol})},
		{
			name: "invalid limit", path: "/users?limit=lots", token: token, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"limit": "must be a positive integer"}),
		},
		{
			name: "limit too large", path: "/users?limit=1001", token: token, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"limit": "must be at most 1000"}),
		},
		{
			name: "page out of range", path: "/users?page=9223372036854775807&limit=2", token: token, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"page": "is out of range"}),
		},
	})
}

func Test_userApi_updateMetadata(t *testing.T) {
	app := setup(t)
	testutil.CreateUser(t, app.usrRepo, "user_1", "Jane", "jane@test.io")
	testutil.CreateUser(t, app.usrRepo, "user_2", "John", "john@test.io")
	app.idp.profiles["user_1"] = user.Profile{ID: "user_1", Email: "jane@test.io", Name: "Jane"}

	token := getToken(t, "user_1")
	body := marchallObj(t, user.UpdateMetadata{PublicMetadata: user.PublicMetadata{
		UserType: "Teacher",
		Settings: map[string]interface{}{"theme": "dark"},
	}})

	runHTTPTests(t, app, []httpTest{
		{
			name: "Auth required", method: http.MethodPut, path: "/users/clerk/user_1", body: body,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "someone else", method: http.MethodPut, path: "/users/clerk/user_1", body: body, token: getToken(t, "user_2"),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "you can only update your own account"}),
		},
		{
			name: "missing user type", method: http.MethodPut, path: "/users/clerk/user_1", body: []byte(`{"publicMetadata": {}}`),
			token: token, wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"userType": "this field is required"}),
		},
		{
			name: "unknown user type", method: http.MethodPut, path: "/users/clerk/user_1",
			body: []byte(`{"publicMetadata": {"userType": "admin"}}`), token: token, wantCode: http.StatusBadRequest,
		},
		{
			name: "success", method: http.MethodPut, path: "/users/clerk/user_1", body: body, token: token,
			wantCode: http.StatusOK,
			wantData: marchallResp(t, "User metadata updated successfully.", user.Profile{
				ID:       "user_1",
				Email:    "jane@test.io",
				Name:     "Jane",
				UserType: user.TypeTeacher,
				Settings: map[string]interface{}{"theme": "dark"},
			}),
		},
	})
}
