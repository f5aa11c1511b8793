package out

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"studydesk/internal/modules/session/domain"
	sessionout "studydesk/internal/modules/session/port/out"
	"studydesk/internal/platform/markdown"
	"studydesk/internal/platform/slug"
)

// MarkdownExporter writes one note with YAML frontmatter per finished session.
type MarkdownExporter struct{}

var _ sessionout.NoteExporter = MarkdownExporter{}

func NewMarkdownExporter() MarkdownExporter {
	return MarkdownExporter{}
}

func (MarkdownExporter) Export(ctx context.Context, dir string, records []domain.StudySessionRecord) ([]string, error) {
	paths := make([]string, 0, len(records))
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		path, err := writeNote(dir, record)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

var sessionBlock = markdown.NewBlock("studydesk:session")

// writeNote renders the note for record. When the note already exists only
// the frontmatter and the generated block are rewritten.
func writeNote(root string, record domain.StudySessionRecord) (string, error) {
	date := record.StartTime
	dir := filepath.Join(root, "sessions", date.Format("2006"), date.Format("01"), date.Format("02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create session dir: %w", err)
	}
	name := fmt.Sprintf("%s-%s.md", date.Format("150405"), slug.Make(record.Label()))
	path := filepath.Join(dir, name)

	body := "\n# " + record.Label() + "\n\n"
	if existing, err := os.ReadFile(path); err == nil {
		if note, err := markdown.Parse(string(existing)); err == nil {
			body = note.Body
		}
	}
	generated := fmt.Sprintf("- Subject: %s\n- Started: %s\n- Duration: %.1f minutes",
		record.Subject(), record.StartTime.Local().Format("2006-01-02 15:04"), record.DurationMinutes)

	note := markdown.Note{
		Meta: map[string]any{
			"schema_version":   domain.SchemaVersion,
			"id":               record.ID,
			"subject_id":       domain.Deref(record.SubjectID),
			"subject":          domain.Deref(record.SubjectName),
			"task_id":          domain.Deref(record.TaskID),
			"task":             domain.Deref(record.TaskLabel),
			"started_at":       record.StartTime.Format(time.RFC3339),
			"ended_at":         record.EndTime.Format(time.RFC3339),
			"duration_minutes": roundMinutes(record.DurationMinutes),
		},
		Body: sessionBlock.Replace(body, generated),
	}
	rendered, err := note.Render()
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
		return "", fmt.Errorf("write session note: %w", err)
	}
	return path, nil
}

func roundMinutes(m float64) float64 {
	return float64(int64(m*100+0.5)) / 100
}
