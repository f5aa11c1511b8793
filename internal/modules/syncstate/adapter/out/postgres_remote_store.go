package out

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	syncout "studydesk/internal/modules/syncstate/port/out"
)

// userDocumentField is one top-level field of a user's remote document.
type userDocumentField struct {
	UserID    string         `gorm:"primaryKey;type:text;column:user_id"`
	Field     string         `gorm:"primaryKey;type:text;column:field"`
	Value     datatypes.JSON `gorm:"type:jsonb;not null;column:value"`
	UpdatedAt time.Time      `gorm:"not null;column:updated_at"`
}

func (userDocumentField) TableName() string { return "user_document_fields" }

type PostgresRemoteStore struct {
	db *gorm.DB
}

var _ syncout.RemoteStore = (*PostgresRemoteStore)(nil)

func NewPostgresRemoteStore(dsn string) (*PostgresRemoteStore, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewPostgresRemoteStoreFromDB(gdb)
}

// NewPostgresRemoteStoreFromDB wraps an existing connection and migrates the
// document table.
func NewPostgresRemoteStoreFromDB(gdb *gorm.DB) (*PostgresRemoteStore, error) {
	if err := gdb.AutoMigrate(&userDocumentField{}); err != nil {
		return nil, fmt.Errorf("migrate user_document_fields: %w", err)
	}
	return &PostgresRemoteStore{db: gdb}, nil
}

func (s *PostgresRemoteStore) Load(ctx context.Context, userID string) (syncout.Fields, error) {
	var rows []userDocumentField
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load document %s: %w", userID, err)
	}
	fields := syncout.Fields{}
	for _, row := range rows {
		fields[row.Field] = json.RawMessage(row.Value)
	}
	return fields, nil
}

// Save upserts the named fields in one transaction; other fields of the
// document are left as they are.
func (s *PostgresRemoteStore) Save(ctx context.Context, userID string, fields syncout.Fields) error {
	if len(fields) == 0 {
		return nil
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	now := time.Now().UTC()
	rows := make([]userDocumentField, 0, len(names))
	for _, name := range names {
		rows = append(rows, userDocumentField{
			UserID:    userID,
			Field:     name,
			Value:     datatypes.JSON(fields[name]),
			UpdatedAt: now,
		})
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "field"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("save document %s: %w", userID, err)
	}
	return nil
}

func (s *PostgresRemoteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
