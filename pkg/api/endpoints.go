package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/kintai-hq/kintai-client/pkg/httpclient"
)

// Binding selects which parameter kinds an endpoint accepts.
type Binding uint8

const (
	BindPath Binding = 1 << iota
	BindQuery
	BindBody
)

// Endpoint describes one backend operation: method, path template and parameter binding.
type Endpoint struct {
	Name    string
	Method  string
	Path    string
	Binding Binding
}

// Params carries the caller's arguments for an endpoint.
type Params struct {
	Path  map[string]string
	Query map[string]string
	Body  any
}

var (
	usersList   = Endpoint{Name: "users.list", Method: http.MethodGet, Path: "/users"}
	usersGet    = Endpoint{Name: "users.get", Method: http.MethodGet, Path: "/users/{id}", Binding: BindPath}
	usersCreate = Endpoint{Name: "users.create", Method: http.MethodPost, Path: "/users", Binding: BindBody}
	usersDelete = Endpoint{Name: "users.delete", Method: http.MethodDelete, Path: "/users/{id}", Binding: BindPath}
	usersImport = Endpoint{Name: "users.import", Method: http.MethodPost, Path: "/users/import", Binding: BindBody}

	qrGenerate     = Endpoint{Name: "qr.generate", Method: http.MethodPost, Path: "/generate-qr", Binding: BindBody}
	qrSendEmail    = Endpoint{Name: "qr.send_email", Method: http.MethodPost, Path: "/send-qr-email", Binding: BindBody}
	qrSendEmailAll = Endpoint{Name: "qr.send_email_all", Method: http.MethodPost, Path: "/send-qr-email-all"}

	attendanceCheck = Endpoint{Name: "attendance.check", Method: http.MethodPost, Path: "/attendance/check", Binding: BindBody}
	attendanceList  = Endpoint{Name: "attendance.list", Method: http.MethodGet, Path: "/attendance", Binding: BindQuery}

	authLogin      = Endpoint{Name: "auth.login", Method: http.MethodPost, Path: "/auth/login", Binding: BindBody}
	authStaffLogin = Endpoint{Name: "auth.staff_login", Method: http.MethodPost, Path: "/auth/staff-login", Binding: BindBody}
	authLogout     = Endpoint{Name: "auth.logout", Method: http.MethodPost, Path: "/auth/logout"}
	authStatus     = Endpoint{Name: "auth.status", Method: http.MethodGet, Path: "/auth/status"}

	importsSave   = Endpoint{Name: "imports.save", Method: http.MethodPost, Path: "/import-excel", Binding: BindBody}
	importsList   = Endpoint{Name: "imports.list", Method: http.MethodGet, Path: "/imported-data"}
	importsGet    = Endpoint{Name: "imports.get", Method: http.MethodGet, Path: "/imported-data/{id}", Binding: BindPath}
	importsDelete = Endpoint{Name: "imports.delete", Method: http.MethodDelete, Path: "/imported-data/{id}", Binding: BindPath}

	makeUpsList   = Endpoint{Name: "makeups.list", Method: http.MethodGet, Path: "/makeup-requests"}
	makeUpsCreate = Endpoint{Name: "makeups.create", Method: http.MethodPost, Path: "/makeup-requests", Binding: BindBody}
	makeUpsUpdate = Endpoint{Name: "makeups.update", Method: http.MethodPatch, Path: "/makeup-requests/{id}", Binding: BindPath | BindBody}

	salariesList   = Endpoint{Name: "salaries.list", Method: http.MethodGet, Path: "/teacher-salaries"}
	salariesSave   = Endpoint{Name: "salaries.save", Method: http.MethodPost, Path: "/teacher-salaries", Binding: BindBody}
	salariesDelete = Endpoint{Name: "salaries.delete", Method: http.MethodDelete, Path: "/teacher-salaries/{id}", Binding: BindPath}

	paidLeaveCreate = Endpoint{Name: "paid_leave.create", Method: http.MethodPost, Path: "/paid-leave", Binding: BindBody}
	paidLeaveList   = Endpoint{Name: "paid_leave.list", Method: http.MethodGet, Path: "/paid-leave"}

	health = Endpoint{Name: "health", Method: http.MethodGet, Path: "/health"}
)

// Endpoints returns the catalog of every operation the facade exposes.
func Endpoints() []Endpoint {
	return []Endpoint{
		usersList, usersGet, usersCreate, usersDelete, usersImport,
		qrGenerate, qrSendEmail, qrSendEmailAll,
		attendanceCheck, attendanceList,
		authLogin, authStaffLogin, authLogout, authStatus,
		importsSave, importsList, importsGet, importsDelete,
		makeUpsList, makeUpsCreate, makeUpsUpdate,
		salariesList, salariesSave, salariesDelete,
		paidLeaveCreate, paidLeaveList,
		health,
	}
}

// Request binds p to the endpoint. Parameters the binding does not accept are dropped;
// the caller's maps are copied, never modified.
func (e Endpoint) Request(p Params) (httpclient.Request, error) {
	path, err := e.expand(p.Path)
	if err != nil {
		return httpclient.Request{}, err
	}

	req := httpclient.Request{Method: e.Method, Path: path}
	if e.Binding&BindQuery != 0 && len(p.Query) > 0 {
		req.Query = make(map[string]string, len(p.Query))
		for k, v := range p.Query {
			req.Query[k] = v
		}
	}
	if e.Binding&BindBody != 0 {
		req.Body = p.Body
	}
	return req, nil
}

// expand substitutes {name} placeholders with path-escaped values.
func (e Endpoint) expand(values map[string]string) (string, error) {
	tmpl := e.Path
	if e.Binding&BindPath == 0 {
		if strings.ContainsAny(tmpl, "{}") {
			return "", fmt.Errorf("endpoint %s: template %q has placeholders but no path binding", e.Name, tmpl)
		}
		return tmpl, nil
	}

	var b strings.Builder
	for {
		open := strings.IndexByte(tmpl, '{')
		if open < 0 {
			b.WriteString(tmpl)
			break
		}
		end := strings.IndexByte(tmpl[open:], '}')
		if end < 0 {
			return "", fmt.Errorf("endpoint %s: unterminated placeholder in %q", e.Name, e.Path)
		}
		name := tmpl[open+1 : open+end]
		val, ok := values[name]
		if !ok || val == "" {
			return "", fmt.Errorf("endpoint %s: missing path parameter %q", e.Name, name)
		}
		b.WriteString(tmpl[:open])
		b.WriteString(url.PathEscape(val))
		tmpl = tmpl[open+end+1:]
	}
	return b.String(), nil
}

func (e Endpoint) String() string { return e.Method + " " + e.Path }
