package phaseMarker

import (
	"context"
	"time"

	"github.com/hedgefund-labs/fund-settler/pkg/postgres/helpers"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultMarkerName = "settlement"

type PipelineMarker struct {
	Name      string `gorm:"primaryKey"`
	Marker    Phase
	UpdatedAt time.Time
}

func (PipelineMarker) TableName() string {
	return "pipeline_markers"
}

// PostgresTracker persists the phase so a restarted process resumes where it stopped.
// The conditional update also serializes claims made by separate processes.
type PostgresTracker struct {
	db          *gorm.DB
	name        string
	logger      *zap.Logger
	retryConfig helpers.RetryConfig
}

func NewPostgresTracker(db *gorm.DB, name string, l *zap.Logger) *PostgresTracker {
	if name == "" {
		name = DefaultMarkerName
	}
	return &PostgresTracker{
		db:          db,
		name:        name,
		logger:      l,
		retryConfig: helpers.DefaultRetryConfig,
	}
}

func (t *PostgresTracker) ensureRow(ctx context.Context) error {
	res := t.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&PipelineMarker{
			Name:      t.name,
			Marker:    InitialPhase,
			UpdatedAt: time.Now().UTC(),
		})
	return res.Error
}

func (t *PostgresTracker) Get(ctx context.Context) (Phase, error) {
	var phase Phase
	err := helpers.WithRetry(ctx, t.retryConfig, t.logger, "GetPhase", func() error {
		if err := t.ensureRow(ctx); err != nil {
			return err
		}
		marker := &PipelineMarker{}
		res := t.db.WithContext(ctx).Where("name = ?", t.name).First(marker)
		if res.Error != nil {
			return res.Error
		}
		phase = marker.Marker
		return nil
	})
	if err != nil {
		return "", err
	}
	return ParsePhase(string(phase))
}

func (t *PostgresTracker) CompareAndSwap(ctx context.Context, expected Phase, next Phase) (bool, error) {
	if _, err := ParsePhase(string(next)); err != nil {
		return false, err
	}

	var swapped bool
	err := helpers.WithRetry(ctx, t.retryConfig, t.logger, "CompareAndSwapPhase", func() error {
		if err := t.ensureRow(ctx); err != nil {
			return err
		}
		res := t.db.WithContext(ctx).
			Model(&PipelineMarker{}).
			Where("name = ? AND marker = ?", t.name, expected).
			Updates(map[string]interface{}{
				"marker":     next,
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		swapped = res.RowsAffected == 1
		return nil
	})
	if err != nil {
		return false, err
	}
	if swapped {
		t.logger.Sugar().Debugw("Phase marker moved",
			zap.String("from", expected.String()),
			zap.String("to", next.String()),
		)
	}
	return swapped, nil
}

func (t *PostgresTracker) Set(ctx context.Context, phase Phase) error {
	if _, err := ParsePhase(string(phase)); err != nil {
		return err
	}
	return helpers.WithRetry(ctx, t.retryConfig, t.logger, "SetPhase", func() error {
		if err := t.ensureRow(ctx); err != nil {
			return err
		}
		res := t.db.WithContext(ctx).
			Model(&PipelineMarker{}).
			Where("name = ?", t.name).
			Updates(map[string]interface{}{
				"marker":     phase,
				"updated_at": time.Now().UTC(),
			})
		return res.Error
	})
}
