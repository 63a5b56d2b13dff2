// Package scope computes the teams, projects and tasks a user may see.
package scope

import (
	"context"
	"fmt"
	"sort"

	"taskhub/apperr"
	"taskhub/models"
	"taskhub/store"
)

type EntityType string

const (
	Teams    EntityType = "team"
	Projects EntityType = "project"
	Tasks    EntityType = "task"
)

func ParseEntityType(s string) (EntityType, error) {
	switch e := EntityType(s); e {
	case Teams, Projects, Tasks:
		return e, nil
	}
	return "", apperr.New(apperr.ValidationFailed, "unknown entity type",
		apperr.WithField("entity", fmt.Sprintf("%q is not one of team, project, task", s)))
}

// IDSet is an immutable, sorted set of entity ids.
type IDSet struct {
	ids   []uint
	index map[uint]struct{}
}

func NewIDSet(ids []uint) IDSet {
	index := make(map[uint]struct{}, len(ids))
	sorted := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := index[id]; ok {
			continue
		}
		index[id] = struct{}{}
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return IDSet{ids: sorted, index: index}
}

func (s IDSet) IDs() []uint {
	out := make([]uint, len(s.ids))
	copy(out, s.ids)
	return out
}

func (s IDSet) Len() int { return len(s.ids) }

func (s IDSet) Contains(id uint) bool {
	_, ok := s.index[id]
	return ok
}

// Filter restricts a store listing to the set.
func (s IDSet) Filter() store.IDFilter {
	return store.Only(s.IDs())
}

// Resolver derives visibility from the user's role and the current store
// contents. Nothing is cached between calls.
type Resolver struct {
	store store.Store
}

func NewResolver(s store.Store) *Resolver {
	return &Resolver{store: s}
}

// WithStore returns a resolver reading through s, typically a transaction.
func (r *Resolver) WithStore(s store.Store) *Resolver {
	return &Resolver{store: s}
}

func (r *Resolver) VisibleScope(ctx context.Context, user *models.User, entity EntityType) (IDSet, error) {
	switch entity {
	case Teams:
		return r.Teams(ctx, user)
	case Projects:
		return r.Projects(ctx, user)
	case Tasks:
		return r.Tasks(ctx, user)
	}
	return IDSet{}, apperr.New(apperr.ValidationFailed, fmt.Sprintf("unknown entity type %q", entity))
}

// Teams: everything for admins, managed teams for managers, member teams for
// employees.
func (r *Resolver) Teams(ctx context.Context, user *models.User) (IDSet, error) {
	var (
		ids []uint
		err error
	)
	switch user.Role {
	case models.RoleAdmin:
		ids, err = r.store.TeamIDs(ctx, store.TeamFilter{})
	case models.RoleManager:
		ids, err = r.store.ManagedTeamIDs(ctx, user.ID)
	case models.RoleEmployee:
		ids, err = r.store.MemberTeamIDs(ctx, user.ID)
	default:
		return IDSet{}, unknownRole(user)
	}
	if err != nil {
		return IDSet{}, err
	}
	return NewIDSet(ids), nil
}

// Projects are the projects of the visible teams.
func (r *Resolver) Projects(ctx context.Context, user *models.User) (IDSet, error) {
	var filter store.ProjectFilter
	switch user.Role {
	case models.RoleAdmin:
	case models.RoleManager, models.RoleEmployee:
		teams, err := r.Teams(ctx, user)
		if err != nil {
			return IDSet{}, err
		}
		filter.TeamIDs = teams.Filter()
	default:
		return IDSet{}, unknownRole(user)
	}

	ids, err := r.store.ProjectIDs(ctx, filter)
	if err != nil {
		return IDSet{}, err
	}
	return NewIDSet(ids), nil
}

// Tasks are the tasks of the visible projects for admins and managers, and
// only the tasks assigned to them for employees.
func (r *Resolver) Tasks(ctx context.Context, user *models.User) (IDSet, error) {
	var filter store.TaskFilter
	switch user.Role {
	case models.RoleAdmin:
	case models.RoleManager:
		projects, err := r.Projects(ctx, user)
		if err != nil {
			return IDSet{}, err
		}
		filter.ProjectIDs = projects.Filter()
	case models.RoleEmployee:
		userID := user.ID
		filter.AssignedTo = &userID
	default:
		return IDSet{}, unknownRole(user)
	}

	ids, err := r.store.TaskIDs(ctx, filter)
	if err != nil {
		return IDSet{}, err
	}
	return NewIDSet(ids), nil
}

func unknownRole(user *models.User) error {
	return apperr.New(apperr.Internal, fmt.Sprintf("<User %d> has unknown role %q", user.ID, user.Role))
}
