// Package storetest provides an in-memory store and fixture builders for tests.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"taskhub/models"
	"taskhub/store"
)

// NewDB opens a private in-memory SQLite database with the domain tables.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "opening sqlite must not fail")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection keeps the in-memory database alive and serializes access.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db), "migrating must not fail")
	return db
}

func New(t *testing.T) *store.GormStore {
	t.Helper()
	return store.NewGormStore(NewDB(t))
}

// Fixtures creates records through a store, failing the test on error.
type Fixtures struct {
	t     *testing.T
	store store.Store
	seq   int
}

func NewFixtures(t *testing.T, s store.Store) *Fixtures {
	return &Fixtures{t: t, store: s}
}

func (f *Fixtures) User(role models.Role) *models.User {
	f.t.Helper()
	f.seq++
	user := &models.User{
		Name:         fmt.Sprintf("%s %d", role, f.seq),
		Email:        fmt.Sprintf("%s%d@test.com", role, f.seq),
		PasswordHash: "x",
		Role:         role,
	}
	require.NoError(f.t, f.store.CreateUser(context.Background(), user))
	return user
}

func (f *Fixtures) Team(manager *models.User, members ...*models.User) *models.Team {
	f.t.Helper()
	f.seq++
	team := &models.Team{Name: fmt.Sprintf("team %d", f.seq), ManagerID: manager.ID}
	require.NoError(f.t, f.store.CreateTeam(context.Background(), team, nil))
	for _, member := range members {
		require.NoError(f.t, f.store.AddTeamMember(context.Background(), team.ID, member.ID))
	}
	return team
}

func (f *Fixtures) Project(team *models.Team, status models.ProjectStatus) *models.Project {
	f.t.Helper()
	f.seq++
	project := &models.Project{Name: fmt.Sprintf("project %d", f.seq), TeamID: team.ID, Status: status}
	require.NoError(f.t, f.store.CreateProject(context.Background(), project))
	return project
}

func (f *Fixtures) Task(project *models.Project, assignee *models.User, status models.TaskStatus) *models.Task {
	f.t.Helper()
	f.seq++
	task := &models.Task{
		Title:     fmt.Sprintf("task %d", f.seq),
		ProjectID: project.ID,
		Priority:  models.PriorityMedium,
		Status:    status,
	}
	if assignee != nil {
		id := assignee.ID
		task.AssignedTo = &id
	}
	require.NoError(f.t, f.store.CreateTask(context.Background(), task))
	return task
}
