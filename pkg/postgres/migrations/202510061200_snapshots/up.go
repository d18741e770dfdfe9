package _202510061200_snapshots

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
	ts := helpers.TimestampColumnType(grm)
	numeric := helpers.NumericColumnType(grm)

	queries := []string{
		fmt.Sprintf(`
		create table if not exists snapshots (
			date %[1]s primary key,
			state varchar(32) not null,
			claim_nft_id varchar(255),
			created_at %[1]s not null default current_timestamp,
			updated_at %[1]s not null default current_timestamp
		)`, ts),
		`create index if not exists idx_snapshots_state_date on snapshots (state, date)`,
		fmt.Sprintf(`
		create table if not exists snapshot_accounts (
			date %[1]s not null references snapshots (date) on delete cascade,
			account varchar(255) not null,
			lsu_amount %[2]s not null,
			fund_units_sent boolean not null default false,
			created_at %[1]s not null default current_timestamp,
			updated_at %[1]s not null default current_timestamp,
			primary key (date, account)
		)`, ts, numeric),
		`create index if not exists idx_snapshot_accounts_pending on snapshot_accounts (date, fund_units_sent)`,
	}

	for _, query := range queries {
		if res := grm.Exec(query); res.Error != nil {
			return res.Error
		}
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202510061200_snapshots"
}
