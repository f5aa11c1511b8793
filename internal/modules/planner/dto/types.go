package dto

import "time"

type CreateInput struct {
	Name        string
	TotalDays   int
	TasksPerDay int
	Tasks       []string
}

type TaskOutput struct {
	ID          string
	Name        string
	Position    int
	Completed   bool
	CompletedAt *time.Time
}

type PlanOutput struct {
	ID          string
	Name        string
	TotalDays   int
	TasksPerDay int
	CreatedAt   time.Time
	Tasks       []TaskOutput
	CurrentDay  int
	Completed   int
	Total       int
}

type DayOutput struct {
	PlanID     string
	PlanName   string
	Day        int
	CurrentDay int
	TotalDays  int
	Tasks      []TaskOutput
	Completed  int
	Total      int
}
