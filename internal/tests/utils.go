package tests

import (
	"fmt"
	"os"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/hedgefund-labs/fund-settler/internal/config"
	"github.com/hedgefund-labs/fund-settler/pkg/postgres/migrations"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func GetConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Debug = os.Getenv("SETTLER_DEBUG") == "true"
	cfg.Network = config.Network_Stokenet
	return cfg
}

func GenerateTestDbName() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("test_%s", id.String()), nil
}

// GetSqliteDatabaseConnection opens an isolated in-memory database.
func GetSqliteDatabaseConnection() (*gorm.DB, error) {
	name, err := GenerateTestDbName()
	if err != nil {
		return nil, err
	}
	grm, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	rawDb, err := grm.DB()
	if err != nil {
		return nil, err
	}
	rawDb.SetMaxOpenConns(1)
	return grm, nil
}

// GetTestDatabase opens an isolated in-memory database with all migrations applied.
func GetTestDatabase(cfg *config.Config, l *zap.Logger) (*gorm.DB, error) {
	grm, err := GetSqliteDatabaseConnection()
	if err != nil {
		return nil, err
	}
	rawDb, err := grm.DB()
	if err != nil {
		return nil, err
	}

	migrator := migrations.NewMigrator(rawDb, grm, l, cfg)
	if err := migrator.MigrateAll(); err != nil {
		return nil, err
	}
	return grm, nil
}

func TeardownTestDatabase(grm *gorm.DB) {
	if rawDb, err := grm.DB(); err == nil {
		_ = rawDb.Close()
	}
}

func ReplaceEnv(newValues map[string]string, previousValues *map[string]string) {
	for k, v := range newValues {
		(*previousValues)[k] = os.Getenv(k)
		os.Setenv(k, v)
	}
}

func RestoreEnv(previousValues map[string]string) {
	for k, v := range previousValues {
		os.Setenv(k, v)
	}
}
