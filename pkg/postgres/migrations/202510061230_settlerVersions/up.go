package _202510061230_settlerVersions

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
		create table if not exists settler_versions (
			%s,
			version text not null,
			created_at %s default current_timestamp
		)`, helpers.SerialColumn(grm, "id"), helpers.TimestampColumnType(grm))

	res := grm.Exec(query)
	return res.Error
}

func (m *Migration) GetName() string {
	return "202510061230_settlerVersions"
}
