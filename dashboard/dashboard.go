// Package dashboard builds the per-role summary shown on the landing page.
package dashboard

import (
	"context"
	"fmt"

	"taskhub/apperr"
	"taskhub/models"
	"taskhub/scope"
	"taskhub/store"
)

// RecentLimit is the length of the recent projects and tasks feeds.
const RecentLimit = 5

// Dashboard is one of AdminDashboard, ManagerDashboard or EmployeeDashboard.
type Dashboard interface {
	Role() models.Role
}

type AdminStats struct {
	TotalTeams     int64 `json:"totalTeams"`
	TotalEmployees int64 `json:"totalEmployees"`
	ActiveProjects int64 `json:"activeProjects"`
	TotalTasks     int64 `json:"totalTasks"`
}

type AdminDashboard struct {
	Stats          AdminStats       `json:"stats"`
	RecentProjects []models.Project `json:"recentProjects"`
	RecentTasks    []models.Task    `json:"recentTasks"`
}

func (AdminDashboard) Role() models.Role { return models.RoleAdmin }

type ManagerStats struct {
	ManagedTeams    int64 `json:"managedTeams"`
	TeamMembers     int64 `json:"teamMembers"`
	ActiveProjects  int64 `json:"activeProjects"`
	TasksInProgress int64 `json:"tasksInProgress"`
}

type ManagerDashboard struct {
	Stats          ManagerStats     `json:"stats"`
	Teams          []models.Team    `json:"teams"`
	RecentProjects []models.Project `json:"recentProjects"`
	RecentTasks    []models.Task    `json:"recentTasks"`
}

func (ManagerDashboard) Role() models.Role { return models.RoleManager }

type EmployeeStats struct {
	AssignedTasks   int64 `json:"assignedTasks"`
	TasksInProgress int64 `json:"tasksInProgress"`
	CompletedTasks  int64 `json:"completedTasks"`
	PendingTasks    int64 `json:"pendingTasks"`
}

type EmployeeDashboard struct {
	Stats   EmployeeStats `json:"stats"`
	MyTasks []models.Task `json:"myTasks"`
	MyTeams []models.Team `json:"myTeams"`
}

func (EmployeeDashboard) Role() models.Role { return models.RoleEmployee }

// Aggregator reads every figure of a dashboard from one read transaction so
// counts and feeds agree with each other.
type Aggregator struct {
	store    store.Store
	resolver *scope.Resolver
}

func NewAggregator(s store.Store, resolver *scope.Resolver) *Aggregator {
	return &Aggregator{store: s, resolver: resolver}
}

func (a *Aggregator) For(ctx context.Context, user *models.User) (Dashboard, error) {
	var d Dashboard
	err := a.store.ReadTx(ctx, func(tx store.Store) error {
		var err error
		r := a.resolver.WithStore(tx)

		switch user.Role {
		case models.RoleAdmin:
			d, err = admin(ctx, tx)
		case models.RoleManager:
			d, err = manager(ctx, tx, r, user)
		case models.RoleEmployee:
			d, err = employee(ctx, tx, r, user)
		default:
			err = apperr.New(apperr.Internal, fmt.Sprintf("unknown role %q", user.Role))
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func admin(ctx context.Context, tx store.Store) (*AdminDashboard, error) {
	d := &AdminDashboard{}

	var err error
	if d.Stats.TotalTeams, err = tx.CountTeams(ctx, store.TeamFilter{}); err != nil {
		return nil, err
	}
	if d.Stats.TotalEmployees, err = tx.CountUsers(ctx, store.UserFilter{Role: models.RoleEmployee}); err != nil {
		return nil, err
	}
	if d.Stats.ActiveProjects, err = tx.CountProjects(ctx, store.ProjectFilter{Status: models.ProjectActive}); err != nil {
		return nil, err
	}
	if d.Stats.TotalTasks, err = tx.CountTasks(ctx, store.TaskFilter{}); err != nil {
		return nil, err
	}

	if d.RecentProjects, err = recentProjects(ctx, tx, store.IDFilter{}); err != nil {
		return nil, err
	}
	if d.RecentTasks, err = recentTasks(ctx, tx, store.IDFilter{}); err != nil {
		return nil, err
	}
	return d, nil
}

func manager(ctx context.Context, tx store.Store, r *scope.Resolver, user *models.User) (*ManagerDashboard, error) {
	teams, err := r.Teams(ctx, user)
	if err != nil {
		return nil, err
	}
	projects, err := r.Projects(ctx, user)
	if err != nil {
		return nil, err
	}
	tasks, err := r.Tasks(ctx, user)
	if err != nil {
		return nil, err
	}

	d := &ManagerDashboard{}
	d.Stats.ManagedTeams = int64(teams.Len())

	members, err := tx.TeamMemberIDs(ctx, teams.IDs())
	if err != nil {
		return nil, err
	}
	d.Stats.TeamMembers = int64(len(members))

	if d.Stats.ActiveProjects, err = tx.CountProjects(ctx, store.ProjectFilter{
		IDs:    projects.Filter(),
		Status: models.ProjectActive,
	}); err != nil {
		return nil, err
	}
	if d.Stats.TasksInProgress, err = tx.CountTasks(ctx, store.TaskFilter{
		IDs:    tasks.Filter(),
		Status: models.TaskInProgress,
	}); err != nil {
		return nil, err
	}

	if d.Teams, err = tx.ListTeams(ctx, store.TeamFilter{
		IDs:     teams.Filter(),
		Preload: []string{"Members"},
	}); err != nil {
		return nil, err
	}
	if d.RecentProjects, err = recentProjects(ctx, tx, projects.Filter()); err != nil {
		return nil, err
	}
	if d.RecentTasks, err = recentTasks(ctx, tx, tasks.Filter()); err != nil {
		return nil, err
	}
	return d, nil
}

func employee(ctx context.Context, tx store.Store, r *scope.Resolver, user *models.User) (*EmployeeDashboard, error) {
	tasks, err := r.Tasks(ctx, user)
	if err != nil {
		return nil, err
	}
	teams, err := r.Teams(ctx, user)
	if err != nil {
		return nil, err
	}

	d := &EmployeeDashboard{}
	if d.MyTasks, err = tx.ListTasks(ctx, store.TaskFilter{
		IDs:     tasks.Filter(),
		Preload: []string{"Project.Team", "Assignee"},
		Order:   store.OrderStatusThenLatest,
	}); err != nil {
		return nil, err
	}

	// Counted from the listed tasks so the partition always adds up.
	d.Stats.AssignedTasks = int64(len(d.MyTasks))
	for _, task := range d.MyTasks {
		switch task.Status {
		case models.TaskTodo:
			d.Stats.PendingTasks++
		case models.TaskInProgress:
			d.Stats.TasksInProgress++
		case models.TaskDone:
			d.Stats.CompletedTasks++
		}
	}

	if d.MyTeams, err = tx.ListTeams(ctx, store.TeamFilter{
		IDs:     teams.Filter(),
		Preload: []string{"Manager"},
	}); err != nil {
		return nil, err
	}
	return d, nil
}

func recentProjects(ctx context.Context, tx store.Store, ids store.IDFilter) ([]models.Project, error) {
	return tx.ListProjects(ctx, store.ProjectFilter{
		IDs:     ids,
		Preload: []string{"Team"},
		Order:   store.OrderLatest,
		Limit:   RecentLimit,
	})
}

func recentTasks(ctx context.Context, tx store.Store, ids store.IDFilter) ([]models.Task, error) {
	return tx.ListTasks(ctx, store.TaskFilter{
		IDs:     ids,
		Preload: []string{"Project", "Assignee"},
		Order:   store.OrderLatest,
		Limit:   RecentLimit,
	})
}
