package dto

import "time"

type StartInput struct {
	SubjectID   string
	SubjectName string
	TaskID      string
	TaskLabel   string
}

type ActiveOutput struct {
	SubjectID          string
	SubjectName        string
	TaskID             string
	TaskLabel          string
	Label              string
	StartTime          time.Time
	AccumulatedSeconds float64
	ResumedAt          *time.Time
}

// Status is what the timer shows. Active is nil when idle.
type Status struct {
	Active         *ActiveOutput
	ElapsedSeconds float64
	IsPaused       bool
}

type RecordOutput struct {
	ID              string
	SubjectID       string
	SubjectName     string
	TaskID          string
	TaskLabel       string
	Label           string
	StartTime       time.Time
	EndTime         time.Time
	DurationMinutes float64
}

type SubjectTotal struct {
	Subject  string
	Sessions int
	Minutes  float64
}

type SummaryOutput struct {
	Since    time.Time
	Sessions int
	Minutes  float64
	Subjects []SubjectTotal
}

type ExportOutput struct {
	Dir   string
	Paths []string
}
