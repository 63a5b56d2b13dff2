package models

import (
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const demoPassword = "password"

// SeedDemoData creates one user per role, a team managed by the manager with
// the employee as member, a project and a task assigned to the employee.
// Running it twice leaves the data unchanged.
func SeedDemoData(db *gorm.DB) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(demoPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		users := []*User{
			{Name: "Admin User", Email: "admin@test.com", Role: RoleAdmin},
			{Name: "Manager User", Email: "manager@test.com", Role: RoleManager},
			{Name: "Employee User", Email: "employee@test.com", Role: RoleEmployee},
		}
		for _, user := range users {
			user.PasswordHash = string(hash)
			if err := tx.Where(User{Email: user.Email}).FirstOrCreate(user).Error; err != nil {
				return err
			}
		}
		manager, employee := users[1], users[2]

		team := Team{Name: "Engineering", ManagerID: manager.ID}
		if err := tx.Where(Team{Name: team.Name}).FirstOrCreate(&team).Error; err != nil {
			return err
		}

		membership := TeamMember{TeamID: team.ID, UserID: employee.ID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&membership).Error; err != nil {
			return err
		}

		project := Project{Name: "Website Redesign", TeamID: team.ID, Status: ProjectActive}
		if err := tx.Where(Project{Name: project.Name, TeamID: team.ID}).FirstOrCreate(&project).Error; err != nil {
			return err
		}

		task := Task{
			Title:      "Design Homepage",
			ProjectID:  project.ID,
			AssignedTo: &employee.ID,
			Priority:   PriorityHigh,
			Status:     TaskTodo,
		}
		return tx.Where(Task{Title: task.Title, ProjectID: project.ID}).FirstOrCreate(&task).Error
	})
}

// AutoMigrate creates or updates the tables of the domain entities.
func AutoMigrate(db *gorm.DB) error {
	if err := db.SetupJoinTable(&Team{}, "Members", &TeamMember{}); err != nil {
		return err
	}
	if err := db.SetupJoinTable(&User{}, "Teams", &TeamMember{}); err != nil {
		return err
	}
	return db.AutoMigrate(
		&User{},
		&Team{},
		&TeamMember{},
		&Project{},
		&Task{},
	)
}
