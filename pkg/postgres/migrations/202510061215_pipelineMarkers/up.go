package _202510061215_pipelineMarkers

import (
	"database/sql"
	"fmt"

	"github.com/hedgefund-labs/fund-settler/internal/config"
	"github.com/hedgefund-labs/fund-settler/pkg/postgres/helpers"
	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error {
	query := fmt.Sprintf(`
		create table if not exists pipeline_markers (
			name varchar(64) primary key,
			marker varchar(32) not null,
			updated_at %s not null default current_timestamp
		)`, helpers.TimestampColumnType(grm))

	res := grm.Exec(query)
	return res.Error
}

func (m *Migration) GetName() string {
	return "202510061215_pipelineMarkers"
}
