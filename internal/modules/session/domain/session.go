package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "studydesk/internal/platform/errors"
)

const SchemaVersion = 1

const minDurationMinutes = 1.0 / 60

// ActiveSession is the single in-progress timer. It is Running while
// ResumedAt is set and Paused otherwise.
type ActiveSession struct {
	SubjectID          *string    `json:"subjectId"`
	SubjectName        *string    `json:"subjectName"`
	TaskID             *string    `json:"taskId"`
	TaskLabel          *string    `json:"taskLabel"`
	StartTime          time.Time  `json:"startTime"`
	AccumulatedSeconds float64    `json:"accumulatedSeconds"`
	ResumedAt          *time.Time `json:"resumedAt"`
}

// UnmarshalJSON accepts records written before pause support existed: when
// both accumulatedSeconds and resumedAt are missing the session is running
// since startTime with nothing accumulated.
func (a *ActiveSession) UnmarshalJSON(data []byte) error {
	type plain ActiveSession
	var wire struct {
		plain
		AccumulatedSeconds *float64        `json:"accumulatedSeconds"`
		ResumedAt          json.RawMessage `json:"resumedAt"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*a = ActiveSession(wire.plain)
	a.AccumulatedSeconds = 0
	a.ResumedAt = nil
	if wire.AccumulatedSeconds == nil && wire.ResumedAt == nil {
		start := a.StartTime
		a.ResumedAt = &start
		return nil
	}
	if wire.AccumulatedSeconds != nil && *wire.AccumulatedSeconds > 0 {
		a.AccumulatedSeconds = *wire.AccumulatedSeconds
	}
	if len(wire.ResumedAt) > 0 && string(wire.ResumedAt) != "null" {
		var resumed time.Time
		if err := json.Unmarshal(wire.ResumedAt, &resumed); err != nil {
			return fmt.Errorf("decode resumedAt: %w", err)
		}
		a.ResumedAt = &resumed
	}
	return nil
}

func (a ActiveSession) IsPaused() bool { return a.ResumedAt == nil }

// ElapsedSeconds is the accumulated time plus the current running stretch.
// Clock skew never makes it negative.
func (a ActiveSession) ElapsedSeconds(now time.Time) float64 {
	total := a.AccumulatedSeconds
	if a.ResumedAt != nil {
		if run := now.Sub(*a.ResumedAt).Seconds(); run > 0 {
			total += run
		}
	}
	if total < 0 {
		return 0
	}
	return total
}

func (a ActiveSession) Pause(now time.Time) (ActiveSession, error) {
	if a.IsPaused() {
		return a, apperrors.ErrSessionNotRunning
	}
	next := a
	next.AccumulatedSeconds = a.ElapsedSeconds(now)
	next.ResumedAt = nil
	return next, nil
}

func (a ActiveSession) Continue(now time.Time) (ActiveSession, error) {
	if !a.IsPaused() {
		return a, apperrors.ErrSessionNotPaused
	}
	next := a
	resumed := now
	next.ResumedAt = &resumed
	return next, nil
}

// Label names the session for humans: task, then subject, then a default.
func (a ActiveSession) Label() string {
	return label(a.TaskLabel, a.SubjectName)
}

// StudySessionRecord is one finished session in the session log.
type StudySessionRecord struct {
	ID              string    `json:"id"`
	SubjectID       *string   `json:"subjectId"`
	SubjectName     *string   `json:"subjectName"`
	TaskID          *string   `json:"taskId"`
	TaskLabel       *string   `json:"taskLabel"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	DurationMinutes float64   `json:"durationMinutes"`
}

// NewRecord closes active at now. The duration never drops below one second.
func NewRecord(id string, active ActiveSession, now time.Time) StudySessionRecord {
	minutes := active.ElapsedSeconds(now) / 60
	if minutes < minDurationMinutes {
		minutes = minDurationMinutes
	}
	return StudySessionRecord{
		ID:              id,
		SubjectID:       active.SubjectID,
		SubjectName:     active.SubjectName,
		TaskID:          active.TaskID,
		TaskLabel:       active.TaskLabel,
		StartTime:       active.StartTime,
		EndTime:         now,
		DurationMinutes: minutes,
	}
}

func (r StudySessionRecord) Label() string {
	return label(r.TaskLabel, r.SubjectName)
}

func (r StudySessionRecord) Subject() string {
	if s := Deref(r.SubjectName); s != "" {
		return s
	}
	return "unassigned"
}

type SubjectTotal struct {
	Subject  string
	Sessions int
	Minutes  float64
}

// Summarize totals records that started at or after since, per subject,
// largest total first.
func Summarize(records []StudySessionRecord, since time.Time) []SubjectTotal {
	bySubject := map[string]*SubjectTotal{}
	for _, r := range records {
		if r.StartTime.Before(since) {
			continue
		}
		total, ok := bySubject[r.Subject()]
		if !ok {
			total = &SubjectTotal{Subject: r.Subject()}
			bySubject[r.Subject()] = total
		}
		total.Sessions++
		total.Minutes += r.DurationMinutes
	}
	out := make([]SubjectTotal, 0, len(bySubject))
	for _, total := range bySubject {
		out = append(out, *total)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Minutes != out[j].Minutes {
			return out[i].Minutes > out[j].Minutes
		}
		return out[i].Subject < out[j].Subject
	})
	return out
}

// Optional turns a blank string into a JSON null.
func Optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func label(task, subject *string) string {
	if t := Deref(task); t != "" {
		return t
	}
	if s := Deref(subject); s != "" {
		return s
	}
	return "study session"
}
