package store

import (
	"context"

	"taskhub/models"
)

// Store is the persistence boundary for users, teams, projects, tasks and team
// membership. Lookups of a single missing record return an apperr NotFound
// error.
type Store interface {
	GetUser(ctx context.Context, id uint) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context, f UserFilter) ([]models.User, error)
	CountUsers(ctx context.Context, f UserFilter) (int64, error)
	CreateUser(ctx context.Context, user *models.User) error
	BumpTokenVersion(ctx context.Context, userID uint) error

	GetTeam(ctx context.Context, id uint, preload ...string) (*models.Team, error)
	ListTeams(ctx context.Context, f TeamFilter) ([]models.Team, error)
	CountTeams(ctx context.Context, f TeamFilter) (int64, error)
	TeamIDs(ctx context.Context, f TeamFilter) ([]uint, error)
	// CreateTeam and UpdateTeam replace the membership in the same
	// transaction when members is not nil.
	CreateTeam(ctx context.Context, team *models.Team, members *[]uint) error
	UpdateTeam(ctx context.Context, team *models.Team, members *[]uint) error
	DeleteTeam(ctx context.Context, id uint) error

	// Relationship accessors.
	ManagedTeamIDs(ctx context.Context, userID uint) ([]uint, error)
	MemberTeamIDs(ctx context.Context, userID uint) ([]uint, error)
	TeamMemberIDs(ctx context.Context, teamIDs []uint) ([]uint, error)
	IsTeamMember(ctx context.Context, teamID, userID uint) (bool, error)
	AddTeamMember(ctx context.Context, teamID, userID uint) error
	RemoveTeamMember(ctx context.Context, teamID, userID uint) error

	GetProject(ctx context.Context, id uint, preload ...string) (*models.Project, error)
	ListProjects(ctx context.Context, f ProjectFilter) ([]models.Project, error)
	CountProjects(ctx context.Context, f ProjectFilter) (int64, error)
	ProjectIDs(ctx context.Context, f ProjectFilter) ([]uint, error)
	CreateProject(ctx context.Context, project *models.Project) error
	UpdateProject(ctx context.Context, project *models.Project) error
	DeleteProject(ctx context.Context, id uint) error

	GetTask(ctx context.Context, id uint, preload ...string) (*models.Task, error)
	ListTasks(ctx context.Context, f TaskFilter) ([]models.Task, error)
	CountTasks(ctx context.Context, f TaskFilter) (int64, error)
	TaskIDs(ctx context.Context, f TaskFilter) ([]uint, error)
	CreateTask(ctx context.Context, task *models.Task) error
	UpdateTask(ctx context.Context, task *models.Task) error
	DeleteTask(ctx context.Context, id uint) error

	// ReadTx runs fn against a store bound to a single read-only transaction,
	// so every read fn performs sees the same snapshot.
	ReadTx(ctx context.Context, fn func(Store) error) error
}

// IDFilter restricts a column to a set of ids. The zero value matches
// everything, Only(nil) matches nothing.
type IDFilter struct {
	set bool
	ids []uint
}

func Only(ids []uint) IDFilter {
	return IDFilter{set: true, ids: ids}
}

func (f IDFilter) Restricted() bool { return f.set }

func (f IDFilter) IDs() []uint { return f.ids }

// Order selects the ordering of a listing.
type Order int

const (
	// OrderID lists by ascending id.
	OrderID Order = iota
	// OrderLatest lists by creation descending, ties in insertion order.
	OrderLatest
	// OrderStatusThenLatest lists tasks todo, in-progress, done and by
	// creation descending within each status.
	OrderStatusThenLatest
)

// Page is a 1-based page of Size records. A zero Size disables paging.
type Page struct {
	Number int
	Size   int
}

func (p Page) Offset() int {
	if p.Number <= 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

type UserFilter struct {
	IDs  IDFilter
	Role models.Role
}

type TeamFilter struct {
	IDs     IDFilter
	Preload []string
	Order   Order
	Page    Page
	Limit   int
}

type ProjectFilter struct {
	IDs     IDFilter
	TeamIDs IDFilter
	Status  models.ProjectStatus
	Preload []string
	Order   Order
	Page    Page
	Limit   int
}

type TaskFilter struct {
	IDs        IDFilter
	ProjectIDs IDFilter
	AssignedTo *uint
	Status     models.TaskStatus
	Preload    []string
	Order      Order
	Page       Page
	Limit      int
}
