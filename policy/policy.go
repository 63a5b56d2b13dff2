// Package policy decides whether a user may perform an action on a team,
// project or task.
package policy

import (
	"context"
	"fmt"

	"taskhub/apperr"
	"taskhub/models"
	"taskhub/scope"
	"taskhub/store"
)

type Action string

const (
	ViewAny Action = "viewAny"
	View    Action = "view"
	Create  Action = "create"
	Update  Action = "update"
	Delete  Action = "delete"
)

func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ViewAny, View, Create, Update, Delete:
		return a, nil
	}
	return "", apperr.New(apperr.ValidationFailed, "unknown action",
		apperr.WithField("action", fmt.Sprintf("%q is not one of viewAny, view, create, update, delete", s)))
}

// needsRecord reports whether the action applies to a single record rather
// than to an entity kind.
func (a Action) needsRecord() bool {
	return a == View || a == Update || a == Delete
}

// Target is what an action applies to: an entity kind for viewAny and create,
// a record otherwise.
type Target struct {
	Kind    scope.EntityType
	Team    *models.Team
	Project *models.Project
	Task    *models.Task
}

func ForKind(kind scope.EntityType) Target { return Target{Kind: kind} }

func ForTeam(team *models.Team) Target { return Target{Kind: scope.Teams, Team: team} }

func ForProject(project *models.Project) Target {
	return Target{Kind: scope.Projects, Project: project}
}

func ForTask(task *models.Task) Target { return Target{Kind: scope.Tasks, Task: task} }

type Engine struct {
	store store.Store
}

func NewEngine(s store.Store) *Engine {
	return &Engine{store: s}
}

// Authorize returns nil when user may perform action on target and an
// AuthorizationDenied error when it may not.
func (e *Engine) Authorize(ctx context.Context, user *models.User, action Action, target Target) error {
	ok, err := e.Can(ctx, user, action, target)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Denied(string(action), string(target.Kind))
	}
	return nil
}

func (e *Engine) Can(ctx context.Context, user *models.User, action Action, target Target) (bool, error) {
	if _, err := ParseAction(string(action)); err != nil {
		return false, err
	}
	if !user.Role.Valid() {
		return false, nil
	}
	if action == ViewAny {
		return true, nil
	}

	switch target.Kind {
	case scope.Teams:
		if action.needsRecord() && target.Team == nil {
			return false, missingRecord(target.Kind)
		}
		return e.canTeam(ctx, user, action, target.Team)
	case scope.Projects:
		if action.needsRecord() && target.Project == nil {
			return false, missingRecord(target.Kind)
		}
		return e.canProject(ctx, user, action, target.Project)
	case scope.Tasks:
		if action.needsRecord() && target.Task == nil {
			return false, missingRecord(target.Kind)
		}
		return e.canTask(ctx, user, action, target.Task)
	}
	return false, apperr.New(apperr.ValidationFailed, fmt.Sprintf("unknown entity type %q", target.Kind))
}

// Load fetches the record a target refers to.
func (e *Engine) Load(ctx context.Context, kind scope.EntityType, id uint) (Target, error) {
	switch kind {
	case scope.Teams:
		team, err := e.store.GetTeam(ctx, id)
		if err != nil {
			return Target{}, err
		}
		return ForTeam(team), nil
	case scope.Projects:
		project, err := e.store.GetProject(ctx, id, "Team")
		if err != nil {
			return Target{}, err
		}
		return ForProject(project), nil
	case scope.Tasks:
		task, err := e.store.GetTask(ctx, id, "Project.Team")
		if err != nil {
			return Target{}, err
		}
		return ForTask(task), nil
	}
	return Target{}, apperr.New(apperr.ValidationFailed, fmt.Sprintf("unknown entity type %q", kind))
}

// Teams are administered by admins only.
func (e *Engine) canTeam(ctx context.Context, user *models.User, action Action, team *models.Team) (bool, error) {
	if user.IsAdmin() {
		return true, nil
	}
	if action != View {
		return false, nil
	}

	switch user.Role {
	case models.RoleManager:
		if managesTeam(user, team) {
			return true, nil
		}
		return e.isTeamMember(ctx, user, team.ID)
	case models.RoleEmployee:
		return e.isTeamMember(ctx, user, team.ID)
	}
	return false, nil
}

func (e *Engine) canProject(ctx context.Context, user *models.User, action Action, project *models.Project) (bool, error) {
	switch user.Role {
	case models.RoleAdmin:
		return true, nil
	case models.RoleManager:
		if action == Create {
			return true, nil
		}
		team, err := e.projectTeam(ctx, project)
		if err != nil {
			return false, err
		}
		if managesTeam(user, team) {
			return true, nil
		}
		if action == View {
			return e.isTeamMember(ctx, user, team.ID)
		}
		return false, nil
	case models.RoleEmployee:
		if action != View {
			return false, nil
		}
		return e.isTeamMember(ctx, user, project.TeamID)
	}
	return false, nil
}

// View is granted on membership of the task's team, for managers and
// employees alike. Update and delete require managing that team. The two
// checks are deliberately different.
func (e *Engine) canTask(ctx context.Context, user *models.User, action Action, task *models.Task) (bool, error) {
	switch user.Role {
	case models.RoleAdmin:
		return true, nil
	case models.RoleManager:
		switch action {
		case Create:
			return true, nil
		case View:
			return e.assigneeOrMember(ctx, user, task)
		case Update:
			if task.IsAssignedTo(user.ID) {
				return true, nil
			}
			return e.managesTaskTeam(ctx, user, task)
		case Delete:
			return e.managesTaskTeam(ctx, user, task)
		}
	case models.RoleEmployee:
		switch action {
		case View:
			return e.assigneeOrMember(ctx, user, task)
		case Update:
			return task.IsAssignedTo(user.ID), nil
		}
	}
	return false, nil
}

func (e *Engine) assigneeOrMember(ctx context.Context, user *models.User, task *models.Task) (bool, error) {
	if task.IsAssignedTo(user.ID) {
		return true, nil
	}
	project, err := e.taskProject(ctx, task)
	if err != nil {
		return false, err
	}
	return e.isTeamMember(ctx, user, project.TeamID)
}

func (e *Engine) managesTaskTeam(ctx context.Context, user *models.User, task *models.Task) (bool, error) {
	project, err := e.taskProject(ctx, task)
	if err != nil {
		return false, err
	}
	team, err := e.projectTeam(ctx, project)
	if err != nil {
		return false, err
	}
	return managesTeam(user, team), nil
}

// isTeamMember reports membership of the user in the team through the
// membership association. Managing a team does not make a user a member.
func (e *Engine) isTeamMember(ctx context.Context, user *models.User, teamID uint) (bool, error) {
	return e.store.IsTeamMember(ctx, teamID, user.ID)
}

// managesTeam reports whether the user is the team's designated manager.
func managesTeam(user *models.User, team *models.Team) bool {
	return team.ManagerID == user.ID
}

func (e *Engine) taskProject(ctx context.Context, task *models.Task) (*models.Project, error) {
	if task.Project != nil {
		return task.Project, nil
	}
	return e.store.GetProject(ctx, task.ProjectID, "Team")
}

func (e *Engine) projectTeam(ctx context.Context, project *models.Project) (*models.Team, error) {
	if project.Team != nil {
		return project.Team, nil
	}
	return e.store.GetTeam(ctx, project.TeamID)
}

func missingRecord(kind scope.EntityType) error {
	return apperr.New(apperr.Internal, fmt.Sprintf("no %s given to authorize against", kind))
}
