package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"taskhub/apperr"
	"taskhub/models"
)

// statusRankSQL sorts rows by models.TaskStatus.Rank.
var statusRankSQL = func() string {
	var b strings.Builder
	b.WriteString("CASE status")
	for _, status := range models.TaskStatuses {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", status, status.Rank())
	}
	fmt.Fprintf(&b, " ELSE %d END", len(models.TaskStatuses))
	return b.String()
}()

// GormStore implements Store on top of gorm.
type GormStore struct {
	db       *gorm.DB
	readOpts *sql.TxOptions
}

type Option func(*GormStore)

// WithReadOptions sets the transaction options ReadTx begins with.
func WithReadOptions(opts *sql.TxOptions) Option {
	return func(s *GormStore) {
		s.readOpts = opts
	}
}

func NewGormStore(db *gorm.DB, opts ...Option) *GormStore {
	s := &GormStore{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *GormStore) ReadTx(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx, readOpts: s.readOpts})
	}, s.readOpts)
}

// --------------------------------------------
// Users

func (s *GormStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, lookupError(err, "User", id)
	}
	return &user, nil
}

func (s *GormStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.NotFound, "user not found")
	} else if err != nil {
		return nil, internal("could not load user", err)
	}
	return &user, nil
}

func (s *GormStore) ListUsers(ctx context.Context, f UserFilter) ([]models.User, error) {
	var users []models.User
	if err := s.userQuery(ctx, f).Order("id").Find(&users).Error; err != nil {
		return nil, internal("could not list users", err)
	}
	return users, nil
}

func (s *GormStore) CountUsers(ctx context.Context, f UserFilter) (int64, error) {
	var count int64
	if err := s.userQuery(ctx, f).Count(&count).Error; err != nil {
		return 0, internal("could not count users", err)
	}
	return count, nil
}

func (s *GormStore) userQuery(ctx context.Context, f UserFilter) *gorm.DB {
	q := applyIDs(s.db.WithContext(ctx).Model(&models.User{}), "id", f.IDs)
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	return q
}

func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
		return internal("could not check email", err)
	} else if count > 0 {
		return apperr.New(apperr.Conflict, "email already registered")
	}

	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(user).Error; err != nil {
		return internal("could not create user", err)
	}
	return nil
}

func (s *GormStore) BumpTokenVersion(ctx context.Context, userID uint) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		UpdateColumn("token_version", gorm.Expr("token_version + 1"))
	if res.Error != nil {
		return internal("could not update token version", res.Error)
	} else if res.RowsAffected == 0 {
		return apperr.EntityNotFound("User", userID)
	}
	return nil
}

// --------------------------------------------
// Teams

func (s *GormStore) GetTeam(ctx context.Context, id uint, preload ...string) (*models.Team, error) {
	var team models.Team
	if err := applyPreload(s.db.WithContext(ctx), preload).First(&team, id).Error; err != nil {
		return nil, lookupError(err, "Team", id)
	}
	return &team, nil
}

func (s *GormStore) ListTeams(ctx context.Context, f TeamFilter) ([]models.Team, error) {
	q := applyIDs(s.db.WithContext(ctx).Model(&models.Team{}), "id", f.IDs)
	q = applyListing(q, f.Preload, f.Order, f.Page, f.Limit)

	var teams []models.Team
	if err := q.Find(&teams).Error; err != nil {
		return nil, internal("could not list teams", err)
	}
	return teams, nil
}

func (s *GormStore) CountTeams(ctx context.Context, f TeamFilter) (int64, error) {
	var count int64
	q := applyIDs(s.db.WithContext(ctx).Model(&models.Team{}), "id", f.IDs)
	if err := q.Count(&count).Error; err != nil {
		return 0, internal("could not count teams", err)
	}
	return count, nil
}

func (s *GormStore) TeamIDs(ctx context.Context, f TeamFilter) ([]uint, error) {
	ids := make([]uint, 0)
	q := applyIDs(s.db.WithContext(ctx).Model(&models.Team{}), "id", f.IDs)
	if err := q.Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, internal("could not list team ids", err)
	}
	return ids, nil
}

// CreateTeam inserts the team and, when members is not nil, its membership in
// one transaction.
func (s *GormStore) CreateTeam(ctx context.Context, team *models.Team, members *[]uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(team).Error; err != nil {
			return internal("could not create team", err)
		}
		if members == nil {
			return nil
		}
		return replaceMembers(tx, team.ID, *members)
	})
}

// UpdateTeam saves the team fields and, when members is not nil, replaces its
// membership in the same transaction.
func (s *GormStore) UpdateTeam(ctx context.Context, team *models.Team, members *[]uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(team).Omit(clause.Associations).
			Select("Name", "Description", "ManagerID").Updates(team)
		if res.Error != nil {
			return internal("could not update team", res.Error)
		} else if res.RowsAffected == 0 {
			return apperr.EntityNotFound("Team", team.ID)
		}
		if members == nil {
			return nil
		}
		return replaceMembers(tx, team.ID, *members)
	})
}

// DeleteTeam removes the team together with its projects, their tasks and the
// team's membership records.
func (s *GormStore) DeleteTeam(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		projectIDs := make([]uint, 0)
		if err := tx.Model(&models.Project{}).Where("team_id = ?", id).Pluck("id", &projectIDs).Error; err != nil {
			return internal("could not list team projects", err)
		}

		if len(projectIDs) > 0 {
			if err := tx.Where("project_id IN ?", projectIDs).Delete(&models.Task{}).Error; err != nil {
				return internal("could not delete team tasks", err)
			}
			if err := tx.Where("id IN ?", projectIDs).Delete(&models.Project{}).Error; err != nil {
				return internal("could not delete team projects", err)
			}
		}

		if err := tx.Where("team_id = ?", id).Delete(&models.TeamMember{}).Error; err != nil {
			return internal("could not delete team members", err)
		}

		res := tx.Delete(&models.Team{}, id)
		if res.Error != nil {
			return internal("could not delete team", res.Error)
		} else if res.RowsAffected == 0 {
			return apperr.EntityNotFound("Team", id)
		}
		return nil
	})
}

func (s *GormStore) ManagedTeamIDs(ctx context.Context, userID uint) ([]uint, error) {
	ids := make([]uint, 0)
	err := s.db.WithContext(ctx).Model(&models.Team{}).
		Where("manager_id = ?", userID).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, internal("could not list managed teams", err)
	}
	return ids, nil
}

func (s *GormStore) MemberTeamIDs(ctx context.Context, userID uint) ([]uint, error) {
	ids := make([]uint, 0)
	err := s.db.WithContext(ctx).Model(&models.Team{}).
		Joins("JOIN team_members ON team_members.team_id = teams.id").
		Where("team_members.user_id = ?", userID).
		Order("teams.id").
		Pluck("teams.id", &ids).Error
	if err != nil {
		return nil, internal("could not list member teams", err)
	}
	return ids, nil
}

func (s *GormStore) TeamMemberIDs(ctx context.Context, teamIDs []uint) ([]uint, error) {
	ids := make([]uint, 0)
	if len(teamIDs) == 0 {
		return ids, nil
	}
	err := s.db.WithContext(ctx).Model(&models.TeamMember{}).
		Where("team_id IN ?", teamIDs).
		Distinct("user_id").
		Order("user_id").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, internal("could not list team members", err)
	}
	return ids, nil
}

func (s *GormStore) IsTeamMember(ctx context.Context, teamID, userID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.TeamMember{}).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		Count(&count).Error
	if err != nil {
		return false, internal("could not check team membership", err)
	}
	return count > 0, nil
}

func (s *GormStore) AddTeamMember(ctx context.Context, teamID, userID uint) error {
	member := models.TeamMember{TeamID: teamID, UserID: userID}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error; err != nil {
		return internal("could not add team member", err)
	}
	return nil
}

func (s *GormStore) RemoveTeamMember(ctx context.Context, teamID, userID uint) error {
	err := s.db.WithContext(ctx).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		Delete(&models.TeamMember{}).Error
	if err != nil {
		return internal("could not remove team member", err)
	}
	return nil
}

// replaceMembers sets the membership of a team to userIDs.
func replaceMembers(tx *gorm.DB, teamID uint, userIDs []uint) error {
	q := tx.Where("team_id = ?", teamID)
	if len(userIDs) > 0 {
		q = q.Where("user_id NOT IN ?", userIDs)
	}
	if err := q.Delete(&models.TeamMember{}).Error; err != nil {
		return internal("could not remove team members", err)
	}

	for _, userID := range userIDs {
		member := models.TeamMember{TeamID: teamID, UserID: userID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error; err != nil {
			return internal("could not add team member", err)
		}
	}
	return nil
}

// --------------------------------------------
// Projects

func (s *GormStore) GetProject(ctx context.Context, id uint, preload ...string) (*models.Project, error) {
	var project models.Project
	if err := applyPreload(s.db.WithContext(ctx), preload).First(&project, id).Error; err != nil {
		return nil, lookupError(err, "Project", id)
	}
	return &project, nil
}

func (s *GormStore) ListProjects(ctx context.Context, f ProjectFilter) ([]models.Project, error) {
	q := applyListing(s.projectQuery(ctx, f), f.Preload, f.Order, f.Page, f.Limit)

	var projects []models.Project
	if err := q.Find(&projects).Error; err != nil {
		return nil, internal("could not list projects", err)
	}
	return projects, nil
}

func (s *GormStore) CountProjects(ctx context.Context, f ProjectFilter) (int64, error) {
	var count int64
	if err := s.projectQuery(ctx, f).Count(&count).Error; err != nil {
		return 0, internal("could not count projects", err)
	}
	return count, nil
}

func (s *GormStore) ProjectIDs(ctx context.Context, f ProjectFilter) ([]uint, error) {
	ids := make([]uint, 0)
	if err := s.projectQuery(ctx, f).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, internal("could not list project ids", err)
	}
	return ids, nil
}

func (s *GormStore) projectQuery(ctx context.Context, f ProjectFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.Project{})
	q = applyIDs(q, "id", f.IDs)
	q = applyIDs(q, "team_id", f.TeamIDs)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	return q
}

func (s *GormStore) CreateProject(ctx context.Context, project *models.Project) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(project).Error; err != nil {
		return internal("could not create project", err)
	}
	return nil
}

func (s *GormStore) UpdateProject(ctx context.Context, project *models.Project) error {
	res := s.db.WithContext(ctx).Model(project).Omit(clause.Associations).
		Select("Name", "Description", "TeamID", "Status").Updates(project)
	if res.Error != nil {
		return internal("could not update project", res.Error)
	} else if res.RowsAffected == 0 {
		return apperr.EntityNotFound("Project", project.ID)
	}
	return nil
}

func (s *GormStore) DeleteProject(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", id).Delete(&models.Task{}).Error; err != nil {
			return internal("could not delete project tasks", err)
		}

		res := tx.Delete(&models.Project{}, id)
		if res.Error != nil {
			return internal("could not delete project", res.Error)
		} else if res.RowsAffected == 0 {
			return apperr.EntityNotFound("Project", id)
		}
		return nil
	})
}

// --------------------------------------------
// Tasks

func (s *GormStore) GetTask(ctx context.Context, id uint, preload ...string) (*models.Task, error) {
	var task models.Task
	if err := applyPreload(s.db.WithContext(ctx), preload).First(&task, id).Error; err != nil {
		return nil, lookupError(err, "Task", id)
	}
	return &task, nil
}

func (s *GormStore) ListTasks(ctx context.Context, f TaskFilter) ([]models.Task, error) {
	q := applyListing(s.taskQuery(ctx, f), f.Preload, f.Order, f.Page, f.Limit)

	var tasks []models.Task
	if err := q.Find(&tasks).Error; err != nil {
		return nil, internal("could not list tasks", err)
	}
	return tasks, nil
}

func (s *GormStore) CountTasks(ctx context.Context, f TaskFilter) (int64, error) {
	var count int64
	if err := s.taskQuery(ctx, f).Count(&count).Error; err != nil {
		return 0, internal("could not count tasks", err)
	}
	return count, nil
}

func (s *GormStore) TaskIDs(ctx context.Context, f TaskFilter) ([]uint, error) {
	ids := make([]uint, 0)
	if err := s.taskQuery(ctx, f).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, internal("could not list task ids", err)
	}
	return ids, nil
}

func (s *GormStore) taskQuery(ctx context.Context, f TaskFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.Task{})
	q = applyIDs(q, "id", f.IDs)
	q = applyIDs(q, "project_id", f.ProjectIDs)
	if f.AssignedTo != nil {
		q = q.Where("assigned_to = ?", *f.AssignedTo)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	return q
}

func (s *GormStore) CreateTask(ctx context.Context, task *models.Task) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(task).Error; err != nil {
		return internal("could not create task", err)
	}
	return nil
}

func (s *GormStore) UpdateTask(ctx context.Context, task *models.Task) error {
	res := s.db.WithContext(ctx).Model(task).Omit(clause.Associations).
		Select("Title", "Description", "ProjectID", "AssignedTo", "Priority", "Status", "DueDate").
		Updates(task)
	if res.Error != nil {
		return internal("could not update task", res.Error)
	} else if res.RowsAffected == 0 {
		return apperr.EntityNotFound("Task", task.ID)
	}
	return nil
}

func (s *GormStore) DeleteTask(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Task{}, id)
	if res.Error != nil {
		return internal("could not delete task", res.Error)
	} else if res.RowsAffected == 0 {
		return apperr.EntityNotFound("Task", id)
	}
	return nil
}

// --------------------------------------------
// Helpers

func applyIDs(q *gorm.DB, column string, f IDFilter) *gorm.DB {
	if !f.set {
		return q
	}
	if len(f.ids) == 0 {
		return q.Where("1 = 0")
	}
	return q.Where(column+" IN ?", f.ids)
}

func applyPreload(q *gorm.DB, preload []string) *gorm.DB {
	for _, p := range preload {
		q = q.Preload(p)
	}
	return q
}

func applyListing(q *gorm.DB, preload []string, order Order, page Page, limit int) *gorm.DB {
	q = applyPreload(q, preload)

	switch order {
	case OrderLatest:
		q = q.Order("created_at DESC").Order("id ASC")
	case OrderStatusThenLatest:
		q = q.Order(statusRankSQL).Order("created_at DESC").Order("id ASC")
	default:
		q = q.Order("id ASC")
	}

	if page.Size > 0 {
		q = q.Offset(page.Offset()).Limit(page.Size)
	} else if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}

func lookupError(err error, entity string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.EntityNotFound(entity, id)
	}
	return internal("could not load "+entity, err)
}

func internal(msg string, err error) error {
	return apperr.New(apperr.Internal, msg, apperr.WithCause(err))
}
