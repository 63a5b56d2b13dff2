package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"taskhub/apperr"
	"taskhub/models"
	"taskhub/scope"
	"taskhub/store"
	"taskhub/store/storetest"
)

type world struct {
	db         *gorm.DB
	store      *store.GormStore
	aggregator *Aggregator
	fx         *storetest.Fixtures

	admin      *models.User
	m1, m2     *models.User
	e1, e2, e3 *models.User
	t1, t2     *models.Team
	p1, p2     *models.Project
	tasks      []*models.Task
}

// Two teams, three employees, one active project and four tasks.
func newWorld(t *testing.T) *world {
	db := storetest.NewDB(t)
	s := store.NewGormStore(db)
	w := &world{
		db:         db,
		store:      s,
		aggregator: NewAggregator(s, scope.NewResolver(s)),
		fx:         storetest.NewFixtures(t, s),
	}

	w.admin = w.fx.User(models.RoleAdmin)
	w.m1 = w.fx.User(models.RoleManager)
	w.m2 = w.fx.User(models.RoleManager)
	w.e1 = w.fx.User(models.RoleEmployee)
	w.e2 = w.fx.User(models.RoleEmployee)
	w.e3 = w.fx.User(models.RoleEmployee)

	w.t1 = w.fx.Team(w.m1, w.e1, w.e2)
	w.t2 = w.fx.Team(w.m2, w.e2, w.e3)
	w.p1 = w.fx.Project(w.t1, models.ProjectActive)
	w.p2 = w.fx.Project(w.t2, models.ProjectCompleted)

	w.tasks = []*models.Task{
		w.fx.Task(w.p1, w.e1, models.TaskTodo),
		w.fx.Task(w.p1, w.e1, models.TaskInProgress),
		w.fx.Task(w.p1, nil, models.TaskInProgress),
		w.fx.Task(w.p2, w.e1, models.TaskDone),
	}
	return w
}

func (w *world) setCreated(t *testing.T, model interface{}, id uint, at time.Time) {
	t.Helper()
	require.NoError(t, w.db.Model(model).Where("id = ?", id).UpdateColumn("created_at", at).Error)
}

func (w *world) dashboard(t *testing.T, user *models.User) Dashboard {
	t.Helper()
	d, err := w.aggregator.For(context.Background(), user)
	require.NoError(t, err)
	require.Equal(t, user.Role, d.Role())
	return d
}

func TestAdminDashboard(t *testing.T) {
	w := newWorld(t)

	d, ok := w.dashboard(t, w.admin).(*AdminDashboard)
	require.True(t, ok)

	assert.Equal(t, AdminStats{
		TotalTeams:     2,
		TotalEmployees: 3,
		ActiveProjects: 1,
		TotalTasks:     4,
	}, d.Stats)

	require.Len(t, d.RecentProjects, 2)
	require.Len(t, d.RecentTasks, 4)
	for _, p := range d.RecentProjects {
		require.NotNil(t, p.Team, "projects come with their team")
	}
	for _, task := range d.RecentTasks {
		require.NotNil(t, task.Project, "tasks come with their project")
	}
}

func TestRecentFeedsAreLatestFive(t *testing.T) {
	w := newWorld(t)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		w.tasks = append(w.tasks, w.fx.Task(w.p1, w.e2, models.TaskTodo))
	}
	for i, task := range w.tasks {
		w.setCreated(t, &models.Task{}, task.ID, base.Add(time.Duration(i)*time.Minute))
	}
	// Same creation time as the newest task: the earlier id comes first.
	w.setCreated(t, &models.Task{}, w.tasks[0].ID, base.Add(7*time.Minute))

	d := w.dashboard(t, w.admin).(*AdminDashboard)

	got := make([]uint, 0, len(d.RecentTasks))
	for _, task := range d.RecentTasks {
		got = append(got, task.ID)
	}
	assert.Equal(t, []uint{
		w.tasks[0].ID, w.tasks[7].ID, w.tasks[6].ID, w.tasks[5].ID, w.tasks[4].ID,
	}, got)

	for _, task := range d.RecentTasks {
		if task.AssignedTo != nil {
			require.NotNil(t, task.Assignee)
			assert.Equal(t, *task.AssignedTo, task.Assignee.ID)
		}
	}
}

func TestManagerDashboard(t *testing.T) {
	w := newWorld(t)

	d, ok := w.dashboard(t, w.m1).(*ManagerDashboard)
	require.True(t, ok)

	assert.Equal(t, ManagerStats{
		ManagedTeams:    1,
		TeamMembers:     2,
		ActiveProjects:  1,
		TasksInProgress: 2,
	}, d.Stats)

	require.Len(t, d.Teams, 1)
	assert.Equal(t, w.t1.ID, d.Teams[0].ID)
	assert.Len(t, d.Teams[0].Members, 2)

	require.Len(t, d.RecentProjects, 1)
	assert.Equal(t, w.p1.ID, d.RecentProjects[0].ID)
	assert.Len(t, d.RecentTasks, 3)
	for _, task := range d.RecentTasks {
		assert.Equal(t, w.p1.ID, task.ProjectID, "feeds stay within managed teams")
	}
}

func TestManagerMembersAreDistinct(t *testing.T) {
	w := newWorld(t)

	// M1 now also manages a team sharing E2 with T1.
	w.fx.Team(w.m1, w.e2, w.e3)

	d := w.dashboard(t, w.m1).(*ManagerDashboard)
	assert.EqualValues(t, 2, d.Stats.ManagedTeams)
	assert.EqualValues(t, 3, d.Stats.TeamMembers)
}

func TestManagerWithoutTeams(t *testing.T) {
	w := newWorld(t)
	idle := w.fx.User(models.RoleManager)

	d := w.dashboard(t, idle).(*ManagerDashboard)
	assert.Equal(t, ManagerStats{}, d.Stats)
	assert.Empty(t, d.Teams)
	assert.Empty(t, d.RecentProjects)
	assert.Empty(t, d.RecentTasks)
}

func TestEmployeeDashboard(t *testing.T) {
	w := newWorld(t)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, task := range w.tasks {
		w.setCreated(t, &models.Task{}, task.ID, base.Add(time.Duration(i)*time.Hour))
	}
	newerTodo := w.fx.Task(w.p2, w.e1, models.TaskTodo)
	w.setCreated(t, &models.Task{}, newerTodo.ID, base.Add(10*time.Hour))

	d, ok := w.dashboard(t, w.e1).(*EmployeeDashboard)
	require.True(t, ok)

	assert.Equal(t, EmployeeStats{
		AssignedTasks:   4,
		TasksInProgress: 1,
		CompletedTasks:  1,
		PendingTasks:    2,
	}, d.Stats)

	got := make([]uint, 0, len(d.MyTasks))
	for _, task := range d.MyTasks {
		got = append(got, task.ID)
		require.NotNil(t, task.Project)
		require.NotNil(t, task.Project.Team)
		require.NotNil(t, task.Assignee)
		assert.Equal(t, w.e1.ID, task.Assignee.ID)
	}
	assert.Equal(t, []uint{newerTodo.ID, w.tasks[0].ID, w.tasks[1].ID, w.tasks[3].ID}, got)

	require.Len(t, d.MyTeams, 1)
	assert.Equal(t, w.t1.ID, d.MyTeams[0].ID)
	require.NotNil(t, d.MyTeams[0].Manager)
	assert.Equal(t, w.m1.ID, d.MyTeams[0].Manager.ID)
}

func TestEmployeeStatsAddUp(t *testing.T) {
	w := newWorld(t)
	statuses := []models.TaskStatus{models.TaskTodo, models.TaskInProgress, models.TaskDone}
	for i := 0; i < 9; i++ {
		w.fx.Task(w.p2, w.e3, statuses[i%len(statuses)])
	}

	for _, user := range []*models.User{w.e1, w.e2, w.e3} {
		s := w.dashboard(t, user).(*EmployeeDashboard).Stats
		assert.Equal(t, s.AssignedTasks, s.TasksInProgress+s.CompletedTasks+s.PendingTasks,
			"employee %d", user.ID)
	}
}

func TestEmployeeWithoutAssignments(t *testing.T) {
	w := newWorld(t)

	d := w.dashboard(t, w.e3).(*EmployeeDashboard)
	assert.Equal(t, EmployeeStats{}, d.Stats)
	assert.Empty(t, d.MyTasks)
	assert.Len(t, d.MyTeams, 1)
}

func TestUnknownRole(t *testing.T) {
	w := newWorld(t)

	d, err := w.aggregator.For(context.Background(), &models.User{Role: "guest"})
	assert.Nil(t, d)
	apperr.AssertKind(t, err, apperr.Internal)
}

func TestDashboardDoesNotWrite(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	before, err := w.store.CountTasks(ctx, store.TaskFilter{})
	require.NoError(t, err)
	for _, user := range []*models.User{w.admin, w.m1, w.e1} {
		w.dashboard(t, user)
	}
	after, err := w.store.CountTasks(ctx, store.TaskFilter{})
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
