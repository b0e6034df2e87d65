package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/openloop-ai/openloop/tool"
)

// planRecord is the persisted snapshot of a plan. The step arrays are
// stored as a single JSON payload; the row is keyed by plan id and
// upserted on every mutation.
type planRecord struct {
	ID        string `gorm:"primaryKey;size:64"`
	Title     string `gorm:"size:255"`
	Completed int
	Total     int
	Payload   string `gorm:"type:text"`
	UpdatedAt time.Time
}

func (planRecord) TableName() string { return "plans" }

// PlanStore persists plan snapshots to SQLite so a run's progress
// survives the process. Writes are best-effort from the flow's point of
// view; the in-memory plan stays authoritative.
type PlanStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPlanStore opens (or creates) the SQLite database at path and
// migrates the plans table.
func NewPlanStore(path string, logger *zap.Logger) (*PlanStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open plan store: %w", err)
	}
	if err := db.AutoMigrate(&planRecord{}); err != nil {
		return nil, fmt.Errorf("migrate plan store: %w", err)
	}
	return &PlanStore{db: db, logger: logger}, nil
}

// Save upserts the plan snapshot.
func (s *PlanStore) Save(ctx context.Context, plan *tool.Plan) error {
	payload, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	completed, total := plan.Progress()
	record := planRecord{
		ID:        plan.ID,
		Title:     plan.Title,
		Completed: completed,
		Total:     total,
		Payload:   string(payload),
		UpdatedAt: time.Now(),
	}
	return s.db.WithContext(ctx).Save(&record).Error
}

// Load returns the persisted plan for id.
func (s *PlanStore) Load(ctx context.Context, id string) (*tool.Plan, error) {
	var record planRecord
	if err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		return nil, err
	}
	var plan tool.Plan
	if err := json.Unmarshal([]byte(record.Payload), &plan); err != nil {
		return nil, fmt.Errorf("unmarshal plan %s: %w", id, err)
	}
	return &plan, nil
}

// List returns the ids of all persisted plans, most recent first.
func (s *PlanStore) List(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&planRecord{}).
		Order("updated_at desc").
		Pluck("id", &ids).Error
	return ids, err
}

// Delete removes the persisted plan for id.
func (s *PlanStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&planRecord{}, "id = ?", id).Error
}
