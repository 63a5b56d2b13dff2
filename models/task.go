package models

import (
	"time"

	"gorm.io/gorm"
)

type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in-progress"
	TaskDone       TaskStatus = "done"
)

// TaskStatuses lists every status in rank order.
var TaskStatuses = []TaskStatus{TaskTodo, TaskInProgress, TaskDone}

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskDone:
		return true
	}
	return false
}

// Rank orders statuses for the employee task list. Unknown statuses sort
// last.
func (s TaskStatus) Rank() int {
	for i, status := range TaskStatuses {
		if status == s {
			return i
		}
	}
	return len(TaskStatuses)
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type Task struct {
	gorm.Model
	Title       string       `gorm:"not null" json:"title"`
	Description string       `json:"description"`
	ProjectID   uint         `gorm:"not null;index" json:"project_id"`
	AssignedTo  *uint        `gorm:"index" json:"assigned_to"`
	Priority    TaskPriority `gorm:"type:varchar(10);not null;default:'medium'" json:"priority"`
	Status      TaskStatus   `gorm:"type:varchar(20);not null;default:'todo';index" json:"status"`
	DueDate     *time.Time   `json:"due_date"`

	// Relations
	Project  *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Assignee *User    `gorm:"foreignKey:AssignedTo" json:"assignee,omitempty"`
}

// IsAssignedTo reports whether userID is the task's assignee.
func (t *Task) IsAssignedTo(userID uint) bool {
	return t.AssignedTo != nil && *t.AssignedTo == userID
}
