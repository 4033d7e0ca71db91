package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"expensetracker/internal/auth"
	"expensetracker/internal/core"
	"expensetracker/internal/mail"
	"expensetracker/internal/report"
	"expensetracker/internal/services"
	"expensetracker/internal/storage"
)

const testPassword = "Tr4vel-Expenses!"

type testEnv struct {
	srv     *Server
	repo    *storage.SQLiteRepository
	auth    *auth.Service
	outbox  *bytes.Buffer
	expense *services.ExpenseService
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "http.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	require.NoError(t, repo.ProvisionRoles(context.Background()))

	authSvc := auth.NewService(repo, auth.Options{BcryptCost: bcrypt.MinCost})
	outbox := &bytes.Buffer{}
	expenses := services.NewExpenseService(repo)
	reports := services.NewReportService(services.ReportServiceConfig{
		Expenses: repo,
		Mailer:   report.Mailer{From: "reports@example.com"},
		Sender:   mail.NewConsoleSender(outbox),
	})

	srv, err := NewServer(opts, Deps{
		Auth:     authSvc,
		Expenses: expenses,
		Reports:  reports,
		DB:       repo,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	return &testEnv{srv: srv, repo: repo, auth: authSvc, outbox: outbox, expense: expenses}
}

func (e *testEnv) user(t *testing.T, username string, roles ...core.Role) core.User {
	t.Helper()
	u, err := e.auth.CreateUser(context.Background(), username, username+"@example.com", testPassword, roles, false)
	require.NoError(t, err)
	return u
}

func (e *testEnv) login(t *testing.T, u core.User) *http.Cookie {
	t.Helper()
	sess, err := e.auth.Login(context.Background(), u)
	require.NoError(t, err)
	return &http.Cookie{Name: SessionCookieName, Value: sess.Token}
}

func (e *testEnv) addExpense(t *testing.T, u core.User, title, amount string, cat core.Category, date string) core.Expense {
	t.Helper()
	exp, err := e.expense.Create(context.Background(), u, core.ExpenseInput{Title: title, Amount: amount, Category: string(cat), Date: date})
	require.NoError(t, err)
	return exp
}

func (e *testEnv) do(t *testing.T, method, target string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func sessionCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == SessionCookieName {
			return c
		}
	}
	return nil
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, Options{})

	rr := env.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)

	rr = env.do(t, http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"database":"ok"`)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestReadyReportsMissingTemplates(t *testing.T) {
	env := newTestEnv(t, Options{})
	rr := env.do(t, http.MethodGet, "/readyz", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"templates":"ok"`)

	delete(env.srv.pages, pageDashboard)
	rr = env.do(t, http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `"missing":["dashboard.html"]`)
	assert.Contains(t, body, `"status":"not_ready"`)
}

func TestStaticAssets(t *testing.T) {
	env := newTestEnv(t, Options{})
	rr := env.do(t, http.MethodGet, "/static/style.css", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Cache-Control"), "max-age=3600")
}

func TestAnonymousRedirectsToLogin(t *testing.T) {
	env := newTestEnv(t, Options{})

	tests := []struct {
		path string
		want string
	}{
		{"/", "/login?next=%2F"},
		{"/dashboard", "/login?next=%2Fdashboard"},
		{"/expenses?category=Food", "/login?next=%2Fexpenses%3Fcategory%3DFood"},
		{"/expenses/add/", "/login?next=%2Fexpenses%2Fadd%2F"},
		{"/expenses/send_report/", "/login?next=%2Fexpenses%2Fsend_report%2F"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := env.do(t, http.MethodGet, tt.path, nil, nil)
			assert.Equal(t, http.StatusFound, rr.Code)
			assert.Equal(t, tt.want, rr.Header().Get("Location"))
		})
	}
}

func TestUserRoleIsDenied(t *testing.T) {
	env := newTestEnv(t, Options{AccessDeniedURL: "/denied"})
	plain := env.user(t, "plain", core.RoleUser)
	cookie := env.login(t, plain)

	for _, path := range []string{
		"/", "/dashboard", "/expenses/add/", "/expenses/update/1", "/expenses/delete/1",
		"/expenses/export_pdf/", "/expenses/generate_pdf/", "/expenses/send_report/",
	} {
		t.Run(path, func(t *testing.T) {
			rr := env.do(t, http.MethodGet, path, nil, cookie)
			assert.Equal(t, http.StatusFound, rr.Code)
			assert.Equal(t, "/denied", rr.Header().Get("Location"))
		})
	}

	rr := env.do(t, http.MethodPost, "/expenses/add/", url.Values{"title": {"x"}}, cookie)
	assert.Equal(t, "/denied", rr.Header().Get("Location"))

	rr = env.do(t, http.MethodGet, "/expenses", nil, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestSuperuserCanManage(t *testing.T) {
	env := newTestEnv(t, Options{})
	root, err := env.auth.CreateUser(context.Background(), "root", "root@example.com", testPassword, nil, true)
	require.NoError(t, err)

	rr := env.do(t, http.MethodGet, "/", nil, env.login(t, root))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestSignUp(t *testing.T) {
	env := newTestEnv(t, Options{})

	form := url.Values{
		"username":  {"carol"},
		"email":     {"carol@example.com"},
		"password1": {testPassword},
		"password2": {testPassword},
	}
	rr := env.do(t, http.MethodPost, "/sign-up", form, nil)
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))
	cookie := sessionCookie(rr)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	u, err := env.repo.GetUserByUsername(context.Background(), "carol")
	require.NoError(t, err)
	assert.Equal(t, []core.Role{core.RoleUser}, u.Roles)

	// already logged in, so the login page forwards to the landing page
	rr = env.do(t, http.MethodGet, "/login", nil, cookie)
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/expenses", rr.Header().Get("Location"))

	rr = env.do(t, http.MethodPost, "/login/sign-up", form, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "A user with that username already exists.")
}

func TestSignUpValidation(t *testing.T) {
	env := newTestEnv(t, Options{})

	rr := env.do(t, http.MethodGet, "/sign-up", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodPost, "/sign-up", url.Values{
		"username":  {"dave"},
		"email":     {"not-an-email"},
		"password1": {testPassword},
		"password2": {"different-password"},
	}, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Enter a valid email address.")
	assert.Contains(t, body, "The two password fields didn")
	assert.Contains(t, body, `value="dave"`)
	assert.NotContains(t, body, testPassword)
	assert.Nil(t, sessionCookie(rr))
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.user(t, "manager", core.RoleManager)

	rr := env.do(t, http.MethodGet, "/login?next=/expenses", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `name="next" value="/expenses"`)

	rr = env.do(t, http.MethodPost, "/login", url.Values{"username": {"manager"}, "password": {"wrong"}}, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Please enter a correct username and password.")
	assert.Nil(t, sessionCookie(rr))

	tests := []struct {
		name string
		next string
		want string
	}{
		{"landing page", "", "/"},
		{"same origin next", "/expenses?category=Food", "/expenses?category=Food"},
		{"protocol relative next", "//evil.example.com/", "/"},
		{"absolute next", "https://evil.example.com/", "/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/login", url.Values{
				"username": {"manager"},
				"password": {testPassword},
				"next":     {tt.next},
			}, nil)
			assert.Equal(t, http.StatusFound, rr.Code)
			assert.Equal(t, tt.want, rr.Header().Get("Location"))
			assert.NotNil(t, sessionCookie(rr))
		})
	}
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t, Options{})
	cookie := env.login(t, env.user(t, "erin", core.RoleManager))

	rr := env.do(t, http.MethodPost, "/logout/", nil, cookie)
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))
	cleared := sessionCookie(rr)
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)

	rr = env.do(t, http.MethodGet, "/expenses", nil, cookie)
	assert.Equal(t, http.StatusFound, rr.Code)

	// GET works too, with or without a session
	rr = env.do(t, http.MethodGet, "/logout/", nil, nil)
	assert.Equal(t, http.StatusFound, rr.Code)
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t, Options{})
	mgr := env.user(t, "manager", core.RoleManager)
	env.addExpense(t, mgr, "Taxi", "12.50", core.CategoryTravel, "2024-01-05")
	env.addExpense(t, mgr, "Lunch", "8.00", core.CategoryFood, "2024-01-06")

	rr := env.do(t, http.MethodGet, "/dashboard", nil, env.login(t, mgr))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "$20.50")
	assert.Contains(t, body, "$12.50")
	assert.Contains(t, body, "Entertainment")
	assert.Contains(t, body, "$0.00")
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
}

func TestExpenseLifecycle(t *testing.T) {
	env := newTestEnv(t, Options{})
	mgr := env.user(t, "manager", core.RoleManager)
	cookie := env.login(t, mgr)

	rr := env.do(t, http.MethodGet, "/expenses/add/", nil, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodPost, "/expenses/add/", url.Values{"title": {""}, "amount": {"abc"}, "category": {"Food"}, "date": {"2024-01-05"}}, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "This field is required.")
	list, err := env.repo.ListActiveExpenses(context.Background(), core.ExpenseFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	rr = env.do(t, http.MethodPost, "/expenses/add/", url.Values{"title": {"Taxi"}, "amount": {"12.50"}, "category": {"Travel"}, "date": {"2024-01-05"}}, cookie)
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/expenses", rr.Header().Get("Location"))

	list, err = env.repo.ListActiveExpenses(context.Background(), core.ExpenseFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	id := list[0].ID
	updatePath := "/expenses/update/" + strconvID(id)

	rr = env.do(t, http.MethodGet, updatePath, nil, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `value="12.50"`)

	rr = env.do(t, http.MethodPost, updatePath, url.Values{"title": {"Airport taxi"}, "amount": {"15"}, "category": {"Transport"}, "date": {"2024-01-05"}}, cookie)
	require.Equal(t, http.StatusFound, rr.Code)

	rr = env.do(t, http.MethodGet, "/expenses", nil, cookie)
	assert.Contains(t, rr.Body.String(), "Airport taxi")

	deletePath := "/expenses/delete/" + strconvID(id)
	rr = env.do(t, http.MethodGet, deletePath, nil, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Are you sure")

	rr = env.do(t, http.MethodPost, deletePath, url.Values{}, cookie)
	require.Equal(t, http.StatusFound, rr.Code)

	rr = env.do(t, http.MethodGet, "/expenses", nil, cookie)
	assert.NotContains(t, rr.Body.String(), "Airport taxi")
	rr = env.do(t, http.MethodPost, deletePath, url.Values{}, cookie)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestExpenseMutationsAreOwnerScoped(t *testing.T) {
	env := newTestEnv(t, Options{})
	owner := env.user(t, "owner", core.RoleManager)
	intruder := env.user(t, "intruder", core.RoleAdmin)
	exp := env.addExpense(t, owner, "Hotel", "100", core.CategoryTravel, "2024-02-01")
	cookie := env.login(t, intruder)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/expenses/update/" + strconvID(exp.ID)},
		{http.MethodPost, "/expenses/update/" + strconvID(exp.ID)},
		{http.MethodGet, "/expenses/delete/" + strconvID(exp.ID)},
		{http.MethodPost, "/expenses/delete/" + strconvID(exp.ID)},
		{http.MethodGet, "/expenses/update/abc"},
		{http.MethodGet, "/expenses/delete/-3"},
	}
	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			form := url.Values{"title": {"Stolen"}, "amount": {"1"}, "category": {"Food"}, "date": {"2024-01-01"}}
			if p.method == http.MethodGet {
				form = nil
			}
			rr := env.do(t, p.method, p.path, form, cookie)
			assert.Equal(t, http.StatusNotFound, rr.Code)
		})
	}

	got, err := env.repo.GetActiveExpense(context.Background(), exp.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hotel", got.Title)
}

func TestListScopeAndFilters(t *testing.T) {
	env := newTestEnv(t, Options{})
	admin := env.user(t, "admin", core.RoleAdmin)
	mgr := env.user(t, "manager", core.RoleManager)
	env.addExpense(t, admin, "Hotel", "100", core.CategoryTravel, "2024-02-01")
	env.addExpense(t, mgr, "Lunch", "8", core.CategoryFood, "2024-01-06")
	env.addExpense(t, mgr, "Taxi", "12.50", core.CategoryTravel, "2024-01-05")

	rr := env.do(t, http.MethodGet, "/expenses", nil, env.login(t, admin))
	body := rr.Body.String()
	assert.Contains(t, body, "Hotel")
	assert.Contains(t, body, "Lunch")
	assert.Contains(t, body, "Owner")

	mgrCookie := env.login(t, mgr)
	rr = env.do(t, http.MethodGet, "/expenses", nil, mgrCookie)
	body = rr.Body.String()
	assert.NotContains(t, body, "Hotel")
	assert.Contains(t, body, "Lunch")

	rr = env.do(t, http.MethodGet, "/expenses?category=Travel&start_date=2024-01-01&end_date=2024-01-31", nil, mgrCookie)
	body = rr.Body.String()
	assert.Contains(t, body, "Taxi")
	assert.NotContains(t, body, "Lunch")
	assert.Contains(t, body, `value="2024-01-01"`)
	assert.Contains(t, body, `<option value="Travel" selected>`)
	assert.Contains(t, body, `/expenses/export_pdf/?category=Travel&amp;end_date=2024-01-31&amp;start_date=2024-01-01`)

	// a single date bound is ignored
	rr = env.do(t, http.MethodGet, "/expenses?start_date=2024-01-06", nil, mgrCookie)
	assert.Contains(t, rr.Body.String(), "Taxi")

	for _, category := range []string{"travel", "Bogus"} {
		t.Run("unknown category "+category, func(t *testing.T) {
			rr := env.do(t, http.MethodGet, "/expenses?category="+category, nil, mgrCookie)
			require.Equal(t, http.StatusOK, rr.Code)
			body := rr.Body.String()
			assert.NotContains(t, body, "Taxi")
			assert.NotContains(t, body, "Lunch")
			assert.Contains(t, body, "No expenses found.")
		})
	}
}

func TestPDFDownloads(t *testing.T) {
	env := newTestEnv(t, Options{})
	mgr := env.user(t, "manager", core.RoleManager)
	cookie := env.login(t, mgr)

	for _, path := range []string{"/expenses/export_pdf/", "/expenses/generate_pdf/"} {
		rr := env.do(t, http.MethodGet, path, nil, cookie)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "No expenses found for the selected filters.", rr.Body.String())
		assert.Contains(t, rr.Header().Get("Content-Type"), "text/plain")
	}

	env.addExpense(t, mgr, "Taxi", "12.50", core.CategoryTravel, "2024-01-05")

	for _, query := range []string{"?category=Food", "?category=travel", "?category=Bogus"} {
		rr := env.do(t, http.MethodGet, "/expenses/export_pdf/"+query, nil, cookie)
		assert.Equal(t, http.StatusOK, rr.Code, query)
		assert.Contains(t, rr.Header().Get("Content-Type"), "text/plain", query)
		assert.Equal(t, "No expenses found for the selected filters.", rr.Body.String(), query)
	}

	for _, path := range []string{"/expenses/export_pdf/?category=Travel", "/expenses/generate_pdf/"} {
		rr := env.do(t, http.MethodGet, path, nil, cookie)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="Filtered_Expense_Report.pdf"`, rr.Header().Get("Content-Disposition"))
		assert.True(t, strings.HasPrefix(rr.Body.String(), "%PDF-"))
	}
}

func TestSendReport(t *testing.T) {
	env := newTestEnv(t, Options{})
	mgr := env.user(t, "manager", core.RoleManager)
	cookie := env.login(t, mgr)

	rr := env.do(t, http.MethodGet, "/expenses/send_report/", nil, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "No expenses to report", rr.Body.String())
	assert.Zero(t, env.outbox.Len())

	env.addExpense(t, mgr, "Taxi", "12.50", core.CategoryTravel, "2024-01-05")
	rr = env.do(t, http.MethodGet, "/expenses/send_report/", nil, cookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Expense report emailed successfully", rr.Body.String())

	sent := env.outbox.String()
	assert.Contains(t, sent, "Subject: Check Your Expense Report")
	assert.Contains(t, sent, "manager@example.com")
	assert.Contains(t, sent, "Expense_Report.pdf")
}

func TestRateLimitOnlyAppliesToPost(t *testing.T) {
	env := newTestEnv(t, Options{RateLimitPerMinute: 2})
	form := url.Values{"username": {"nobody"}, "password": {"wrong"}}

	for i := 0; i < 2; i++ {
		rr := env.do(t, http.MethodPost, "/login", form, nil)
		assert.Equal(t, http.StatusOK, rr.Code)
	}
	rr := env.do(t, http.MethodPost, "/login", form, nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))

	rr = env.do(t, http.MethodGet, "/login", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestSuspiciousRequestsAreRejected(t *testing.T) {
	env := newTestEnv(t, Options{})
	rr := env.do(t, http.MethodGet, "/expenses?category=1+union+select+password", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUnknownRoutes(t *testing.T) {
	env := newTestEnv(t, Options{})
	rr := env.do(t, http.MethodGet, "/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, http.MethodDelete, "/expenses", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func strconvID(id int64) string {
	return strconv.FormatInt(id, 10)
}
