package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	fastws "github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskhub/config"
	controller "taskhub/controllers"
	"taskhub/models"
	"taskhub/store"
	"taskhub/store/storetest"
	"taskhub/utils"
)

type env struct {
	t     *testing.T
	app   *fiber.App
	store store.Store
	fx    *storetest.Fixtures
}

func newEnv(t *testing.T, opts Options) *env {
	saved := config.AppConfig
	t.Cleanup(func() { config.AppConfig = saved })
	config.AppConfig.JWTSecret = "routes-secret"
	config.AppConfig.AccessTokenTTL = time.Minute
	config.AppConfig.RefreshTokenTTL = time.Hour

	s := storetest.New(t)
	app := fiber.New(fiber.Config{ErrorHandler: utils.ErrorHandler})
	SetupRoutes(app, s, opts)

	return &env{t: t, app: app, store: s, fx: storetest.NewFixtures(t, s)}
}

type response struct {
	Status int
	Body   map[string]interface{}
}

func (r response) data() map[string]interface{} {
	data, _ := r.Body["data"].(map[string]interface{})
	return data
}

func (e *env) do(method, path string, user *models.User, body interface{}) response {
	e.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		pair, err := utils.GenerateJWTToken(user)
		require.NoError(e.t, err)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	out := response{Status: resp.StatusCode}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	if len(raw) > 0 {
		require.NoError(e.t, json.Unmarshal(raw, &out.Body), string(raw))
	}
	return out
}

func TestAuthFlow(t *testing.T) {
	e := newEnv(t, Options{})

	resp := e.do("POST", "/auth/register", nil, fiber.Map{
		"name": "Erin", "email": "Erin@Example.com", "password": "correct horse",
	})
	require.Equal(t, fiber.StatusCreated, resp.Status, resp.Body)
	user := resp.data()["user"].(map[string]interface{})
	assert.Equal(t, "employee", user["role"])
	assert.Equal(t, "erin@example.com", user["email"])
	assert.NotContains(t, user, "PasswordHash")

	resp = e.do("POST", "/auth/register", nil, fiber.Map{
		"name": "Erin", "email": "erin@example.com", "password": "correct horse",
	})
	assert.Equal(t, fiber.StatusConflict, resp.Status)

	resp = e.do("POST", "/auth/register", nil, fiber.Map{"email": "nope", "password": "short"})
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.Status)
	assert.Contains(t, resp.Body["details"], "name")
	assert.Contains(t, resp.Body["details"], "password")

	resp = e.do("POST", "/auth/login", nil, fiber.Map{"email": "erin@example.com", "password": "wrong password"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.Status)

	resp = e.do("POST", "/auth/login", nil, fiber.Map{"email": "erin@example.com", "password": "correct horse"})
	require.Equal(t, fiber.StatusOK, resp.Status)
	access := resp.data()["access_token"].(string)
	refresh := resp.data()["refresh_token"].(string)

	me := func(token string) int {
		req := httptest.NewRequest("GET", "/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		r, err := e.app.Test(req, -1)
		require.NoError(t, err)
		return r.StatusCode
	}
	assert.Equal(t, fiber.StatusOK, me(access))

	resp = e.do("POST", "/auth/refresh", nil, fiber.Map{"refresh_token": refresh})
	require.Equal(t, fiber.StatusOK, resp.Status)
	assert.NotEmpty(t, resp.data()["access_token"])

	resp = e.do("POST", "/auth/refresh", nil, fiber.Map{"refresh_token": access})
	assert.Equal(t, fiber.StatusUnauthorized, resp.Status, "access tokens cannot refresh")

	req := httptest.NewRequest("POST", "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	r, err := e.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, r.StatusCode)

	assert.Equal(t, fiber.StatusUnauthorized, me(access))
	resp = e.do("POST", "/auth/refresh", nil, fiber.Map{"refresh_token": refresh})
	assert.Equal(t, fiber.StatusUnauthorized, resp.Status)
}

func TestLoginIsRateLimited(t *testing.T) {
	e := newEnv(t, Options{LoginRateLimit: 2})

	var codes []int
	for i := 0; i < 3; i++ {
		resp := e.do("POST", "/auth/login", nil, fiber.Map{"email": "x@example.com", "password": "whatever"})
		codes = append(codes, resp.Status)
	}
	assert.Equal(t, []int{fiber.StatusUnauthorized, fiber.StatusUnauthorized, fiber.StatusTooManyRequests}, codes)
}

func TestRequiresAuthentication(t *testing.T) {
	e := newEnv(t, Options{})

	for _, path := range []string{"/api/v1/dashboard", "/api/v1/teams", "/api/v1/tasks/1", "/auth/me"} {
		assert.Equal(t, fiber.StatusUnauthorized, e.do("GET", path, nil, nil).Status, path)
	}
	assert.Equal(t, fiber.StatusNotFound, e.do("GET", "/nowhere", nil, nil).Status)

	// Unknown API paths authenticate before they resolve.
	assert.Equal(t, fiber.StatusUnauthorized, e.do("GET", "/api/v1/nowhere", nil, nil).Status)
	user := e.fx.User(models.RoleEmployee)
	resp := e.do("GET", "/api/v1/nowhere", user, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.Status)
	assert.Equal(t, false, resp.Body["success"])
}

func TestPageIsClamped(t *testing.T) {
	w := newWorld(t)

	resp := w.do("GET", "/api/v1/teams?page=922337203685477581", w.admin, nil)
	require.Equal(t, fiber.StatusOK, resp.Status, resp.Body)
	assert.EqualValues(t, controller.MaxPage, resp.Body["page"])
	assert.Empty(t, resp.Body["data"])
	assert.EqualValues(t, 1, resp.Body["total"])
}

// Team T1 managed by M1 with E1 as member, P1 active in T1, K1 in P1 assigned
// to E1. M2 is unrelated to T1.
type world struct {
	*env
	admin, m1, m2, e1, e2 *models.User
	t1                    *models.Team
	p1                    *models.Project
	k1                    *models.Task
}

func newWorld(t *testing.T) *world {
	w := &world{env: newEnv(t, Options{})}
	w.admin = w.fx.User(models.RoleAdmin)
	w.m1 = w.fx.User(models.RoleManager)
	w.m2 = w.fx.User(models.RoleManager)
	w.e1 = w.fx.User(models.RoleEmployee)
	w.e2 = w.fx.User(models.RoleEmployee)
	w.t1 = w.fx.Team(w.m1, w.e1)
	w.p1 = w.fx.Project(w.t1, models.ProjectActive)
	w.k1 = w.fx.Task(w.p1, w.e1, models.TaskTodo)
	return w
}

func TestTaskAuthorization(t *testing.T) {
	w := newWorld(t)
	k1 := fmt.Sprintf("/api/v1/tasks/%d", w.k1.ID)

	resp := w.do("GET", k1, w.e1, nil)
	require.Equal(t, fiber.StatusOK, resp.Status)
	assert.NotNil(t, resp.data()["project"])
	assert.NotNil(t, resp.data()["assignee"])

	assert.Equal(t, fiber.StatusForbidden, w.do("DELETE", k1, w.e1, nil).Status)
	assert.Equal(t, fiber.StatusForbidden, w.do("GET", k1, w.m2, nil).Status)
	assert.Equal(t, fiber.StatusNotFound, w.do("GET", "/api/v1/tasks/9999", w.e1, nil).Status)

	assert.Equal(t, fiber.StatusNoContent, w.do("DELETE", k1, w.m1, nil).Status)
	assert.Equal(t, fiber.StatusNotFound, w.do("GET", k1, w.admin, nil).Status)
}

func TestTaskCRUD(t *testing.T) {
	w := newWorld(t)

	body := fiber.Map{
		"title":       "Write copy",
		"project_id":  w.p1.ID,
		"assigned_to": w.e2.ID,
		"priority":    "high",
		"status":      "todo",
		"due_date":    "2026-11-02",
	}
	assert.Equal(t, fiber.StatusForbidden, w.do("POST", "/api/v1/tasks", w.e1, body).Status)

	resp := w.do("POST", "/api/v1/tasks", w.m1, body)
	require.Equal(t, fiber.StatusCreated, resp.Status, resp.Body)
	id := uint(resp.data()["ID"].(float64))

	task, err := w.store.GetTask(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, task.DueDate)
	assert.Equal(t, "2026-11-02", task.DueDate.Format("2006-01-02"))

	// The assignee may update.
	body["status"] = "in-progress"
	resp = w.do("PUT", fmt.Sprintf("/api/v1/tasks/%d", id), w.e2, body)
	require.Equal(t, fiber.StatusOK, resp.Status, resp.Body)
	task, err = w.store.GetTask(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.TaskInProgress, task.Status)

	// Unassigning clears the column.
	delete(body, "assigned_to")
	resp = w.do("PUT", fmt.Sprintf("/api/v1/tasks/%d", id), w.m1, body)
	require.Equal(t, fiber.StatusOK, resp.Status, resp.Body)
	task, err = w.store.GetTask(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, task.AssignedTo)

	resp = w.do("POST", "/api/v1/tasks", w.m1, fiber.Map{
		"project_id":  9999,
		"assigned_to": 9999,
		"priority":    "urgent",
		"status":      "todo",
	})
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.Status)
	details := resp.Body["details"].(map[string]interface{})
	assert.Contains(t, details, "title")
	assert.Contains(t, details, "priority")

	resp = w.do("POST", "/api/v1/tasks", w.m1, fiber.Map{
		"title":       "Ghost",
		"project_id":  9999,
		"assigned_to": 9999,
		"priority":    "low",
		"status":      "todo",
	})
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.Status)
	details = resp.Body["details"].(map[string]interface{})
	assert.Contains(t, details, "project_id")
	assert.Contains(t, details, "assigned_to")
}

func TestTaskListingIsScoped(t *testing.T) {
	w := newWorld(t)
	w.fx.Task(w.p1, nil, models.TaskDone)
	w.fx.Task(w.p1, w.e2, models.TaskDone)

	count := func(user *models.User, query string) float64 {
		resp := w.do("GET", "/api/v1/tasks"+query, user, nil)
		require.Equal(t, fiber.StatusOK, resp.Status, resp.Body)
		return resp.Body["total"].(float64)
	}
	assert.EqualValues(t, 3, count(w.admin, ""))
	assert.EqualValues(t, 3, count(w.m1, ""))
	assert.EqualValues(t, 0, count(w.m2, ""))
	assert.EqualValues(t, 1, count(w.e1, ""))
	assert.EqualValues(t, 2, count(w.m1, "?status=done"))
	assert.Equal(t, fiber.StatusUnprocessableEntity, w.do("GET", "/api/v1/tasks?status=blocked", w.m1, nil).Status)
}

func TestTeamManagement(t *testing.T) {
	w := newWorld(t)

	body := fiber.Map{"name": "Platform", "manager_id": w.m2.ID, "members": []uint{w.e1.ID, w.e2.ID}}
	assert.Equal(t, fiber.StatusForbidden, w.do("POST", "/api/v1/teams", w.m1, body).Status)

	resp := w.do("POST", "/api/v1/teams", w.admin, body)
	require.Equal(t, fiber.StatusCreated, resp.Status, resp.Body)
	id := uint(resp.data()["ID"].(float64))
	teamPath := fmt.Sprintf("/api/v1/teams/%d", id)

	resp = w.do("GET", teamPath, w.e2, nil)
	require.Equal(t, fiber.StatusOK, resp.Status)
	assert.Len(t, resp.data()["members"], 2)

	body["members"] = []uint{w.e2.ID}
	resp = w.do("PUT", teamPath, w.admin, body)
	require.Equal(t, fiber.StatusOK, resp.Status, resp.Body)
	assert.Len(t, resp.data()["members"], 1)
	assert.Equal(t, fiber.StatusForbidden, w.do("GET", teamPath, w.e1, nil).Status)

	memberPath := fmt.Sprintf("%s/members/%d", teamPath, w.e1.ID)
	assert.Equal(t, fiber.StatusForbidden, w.do("POST", memberPath, w.m2, nil).Status, "managers do not edit teams")
	assert.Equal(t, fiber.StatusOK, w.do("POST", memberPath, w.admin, nil).Status)
	assert.Equal(t, fiber.StatusOK, w.do("GET", teamPath, w.e1, nil).Status)
	assert.Equal(t, fiber.StatusNoContent, w.do("DELETE", memberPath, w.admin, nil).Status)
	assert.Equal(t, fiber.StatusForbidden, w.do("GET", teamPath, w.e1, nil).Status)

	resp = w.do("POST", "/api/v1/teams", w.admin, fiber.Map{"name": "Orphan", "manager_id": 9999})
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.Status)
	assert.Contains(t, resp.Body["details"], "manager_id")

	resp = w.do("GET", "/api/v1/teams", w.e2, nil)
	require.Equal(t, fiber.StatusOK, resp.Status)
	assert.EqualValues(t, 1, resp.Body["total"])

	t1 := fmt.Sprintf("/api/v1/teams/%d", w.t1.ID)
	assert.Equal(t, fiber.StatusNoContent, w.do("DELETE", t1, w.admin, nil).Status)
	assert.Equal(t, fiber.StatusNotFound, w.do("GET", fmt.Sprintf("/api/v1/projects/%d", w.p1.ID), w.admin, nil).Status)
	assert.Equal(t, fiber.StatusNotFound, w.do("GET", fmt.Sprintf("/api/v1/tasks/%d", w.k1.ID), w.admin, nil).Status)
}

func TestProjects(t *testing.T) {
	w := newWorld(t)
	p1 := fmt.Sprintf("/api/v1/projects/%d", w.p1.ID)

	assert.Equal(t, fiber.StatusOK, w.do("GET", p1, w.e1, nil).Status)
	assert.Equal(t, fiber.StatusForbidden, w.do("GET", p1, w.e2, nil).Status)

	update := fiber.Map{"name": "Renamed", "team_id": w.t1.ID, "status": "completed"}
	assert.Equal(t, fiber.StatusForbidden, w.do("PUT", p1, w.m2, update).Status)
	resp := w.do("PUT", p1, w.m1, update)
	require.Equal(t, fiber.StatusOK, resp.Status, resp.Body)
	assert.Equal(t, "completed", resp.data()["status"])

	resp = w.do("POST", "/api/v1/projects", w.m1, fiber.Map{"name": "New", "team_id": w.t1.ID, "status": "paused"})
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.Status)
	assert.Contains(t, resp.Body["details"], "status")

	assert.Equal(t, fiber.StatusNoContent, w.do("DELETE", p1, w.m1, nil).Status)
	assert.Equal(t, fiber.StatusNotFound, w.do("GET", fmt.Sprintf("/api/v1/tasks/%d", w.k1.ID), w.admin, nil).Status)
}

func TestDashboardAndAccessProbes(t *testing.T) {
	w := newWorld(t)

	resp := w.do("GET", "/api/v1/dashboard", w.admin, nil)
	require.Equal(t, fiber.StatusOK, resp.Status)
	assert.Equal(t, "admin", resp.data()["role"])
	stats := resp.data()["dashboard"].(map[string]interface{})["stats"].(map[string]interface{})
	assert.EqualValues(t, 1, stats["totalTeams"])
	assert.EqualValues(t, 2, stats["totalEmployees"])

	resp = w.do("GET", "/api/v1/dashboard", w.e1, nil)
	require.Equal(t, fiber.StatusOK, resp.Status)
	assert.Equal(t, "employee", resp.data()["role"])

	resp = w.do("GET", "/api/v1/scope/task", w.e1, nil)
	require.Equal(t, fiber.StatusOK, resp.Status)
	assert.Equal(t, []interface{}{float64(w.k1.ID)}, resp.data()["ids"])
	assert.Equal(t, fiber.StatusUnprocessableEntity, w.do("GET", "/api/v1/scope/widget", w.e1, nil).Status)

	probe := func(user *models.User, query string) response {
		return w.do("GET", "/api/v1/authorize?"+query, user, nil)
	}
	resp = probe(w.m1, fmt.Sprintf("action=delete&entity=task&id=%d", w.k1.ID))
	require.Equal(t, fiber.StatusOK, resp.Status)
	assert.Equal(t, true, resp.data()["allowed"])

	resp = probe(w.m2, fmt.Sprintf("action=view&entity=task&id=%d", w.k1.ID))
	require.Equal(t, fiber.StatusOK, resp.Status)
	assert.Equal(t, false, resp.data()["allowed"])

	resp = probe(w.e1, "action=create&entity=project")
	require.Equal(t, fiber.StatusOK, resp.Status)
	assert.Equal(t, false, resp.data()["allowed"])

	assert.Equal(t, fiber.StatusNotFound, probe(w.e1, "action=view&entity=task&id=9999").Status)
	assert.Equal(t, fiber.StatusUnprocessableEntity, probe(w.e1, "action=view&entity=task").Status)
	assert.Equal(t, fiber.StatusUnprocessableEntity, probe(w.e1, "action=archive&entity=task").Status)
}

func TestUsers(t *testing.T) {
	w := newWorld(t)

	assert.Equal(t, fiber.StatusForbidden, w.do("GET", "/api/v1/users", w.e1, nil).Status)

	resp := w.do("GET", "/api/v1/users?role=manager", w.m1, nil)
	require.Equal(t, fiber.StatusOK, resp.Status)
	assert.Len(t, resp.Body["data"], 2)

	assert.Equal(t, fiber.StatusUnprocessableEntity, w.do("GET", "/api/v1/users?role=owner", w.admin, nil).Status)
}

func TestDashboardSocket(t *testing.T) {
	w := newWorld(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = w.app.Listener(ln) }()
	t.Cleanup(func() { _ = w.app.ShutdownWithTimeout(5 * time.Second) })

	url := "ws://" + ln.Addr().String() + "/api/v1/dashboard/ws"

	_, resp, err := fastws.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	assert.Equal(t, fiber.StatusUpgradeRequired, w.do("GET", "/api/v1/dashboard/ws", w.e1, nil).Status)

	pair, err := utils.GenerateJWTToken(w.e1)
	require.NoError(t, err)
	header := http.Header{}
	header.Set("Authorization", "Bearer "+pair.AccessToken)

	conn, _, err := fastws.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	require.NoError(t, conn.WriteJSON(fiber.Map{"action": "refresh"}))
	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, true, msg["success"])
	data, _ := msg["data"].(map[string]interface{})
	require.NotNil(t, data)
	assert.Equal(t, "employee", data["role"])
	board, _ := data["dashboard"].(map[string]interface{})
	require.NotNil(t, board)
	stats, _ := board["stats"].(map[string]interface{})
	require.NotNil(t, stats)
	assert.EqualValues(t, 1, stats["assignedTasks"])
	assert.EqualValues(t, 1, stats["pendingTasks"])

	require.NoError(t, conn.WriteJSON(fiber.Map{"action": "subscribe"}))
	msg = nil
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, false, msg["success"])
	assert.Equal(t, "unknown action", msg["error"])

	// The connection stays usable after an unknown action.
	require.NoError(t, conn.WriteJSON(fiber.Map{"action": "refresh"}))
	msg = nil
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, true, msg["success"])
}
