package migrations

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hedgefund-labs/fund-settler/internal/config"
	"github.com/hedgefund-labs/fund-settler/pkg/postgres/helpers"
	_202510061200_snapshots "github.com/hedgefund-labs/fund-settler/pkg/postgres/migrations/202510061200_snapshots"
	_202510061215_pipelineMarkers "github.com/hedgefund-labs/fund-settler/pkg/postgres/migrations/202510061215_pipelineMarkers"
	_202510061230_settlerVersions "github.com/hedgefund-labs/fund-settler/pkg/postgres/migrations/202510061230_settlerVersions"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Migration interface {
	Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error
	GetName() string
}

// Migrations records which migrations have been applied.
type Migrations struct {
	Name      string `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Migrator struct {
	Db           *sql.DB
	GDb          *gorm.DB
	Logger       *zap.Logger
	globalConfig *config.Config
}

func NewMigrator(db *sql.DB, gDb *gorm.DB, l *zap.Logger, cfg *config.Config) *Migrator {
	return &Migrator{
		Db:           db,
		GDb:          gDb,
		Logger:       l,
		globalConfig: cfg,
	}
}

func GetMigrations() []Migration {
	return []Migration{
		&_202510061200_snapshots.Migration{},
		&_202510061215_pipelineMarkers.Migration{},
		&_202510061230_settlerVersions.Migration{},
	}
}

func (m *Migrator) createMigrationsTable() error {
	query := fmt.Sprintf(`
		create table if not exists migrations (
			name varchar(255) primary key,
			created_at %[1]s not null default current_timestamp,
			updated_at %[1]s
		)`, helpers.TimestampColumnType(m.GDb))
	return m.GDb.Exec(query).Error
}

// MigrateAll applies every migration that has not been recorded yet, in order.
func (m *Migrator) MigrateAll() error {
	if err := m.createMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, migration := range GetMigrations() {
		if err := m.Migrate(migration); err != nil {
			return err
		}
	}
	return nil
}

func (m *Migrator) Migrate(migration Migration) error {
	name := migration.GetName()

	var existing Migrations
	res := m.GDb.Model(&Migrations{}).Where("name = ?", name).First(&existing)
	if res.Error == nil {
		m.Logger.Sugar().Debugw("Migration already run", zap.String("name", name))
		return nil
	}
	if !errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to look up migration '%s': %w", name, res.Error)
	}

	m.Logger.Sugar().Infow("Running migration", zap.String("name", name))
	if err := migration.Up(m.Db, m.GDb, m.globalConfig); err != nil {
		m.Logger.Sugar().Errorw("Failed to run migration", zap.String("name", name), zap.Error(err))
		return fmt.Errorf("migration '%s' failed: %w", name, err)
	}

	now := time.Now().UTC()
	res = m.GDb.Model(&Migrations{}).Create(&Migrations{
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to record migration '%s': %w", name, res.Error)
	}
	return nil
}
