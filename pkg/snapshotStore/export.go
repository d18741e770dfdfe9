package snapshotStore

import (
	"context"
	"io"
	"time"

	"github.com/gocarina/gocsv"
)

type AccountRow struct {
	Date          string `csv:"date"`
	Account       string `csv:"account"`
	LsuAmount     string `csv:"lsu_amount"`
	FundUnitsSent bool   `csv:"fund_units_sent"`
}

// ExportSnapshotAccounts writes the accounts of the snapshot at date as csv. A nil date selects
// the most recent snapshot.
func ExportSnapshotAccounts(ctx context.Context, store SnapshotStore, date *time.Time, w io.Writer) (*Snapshot, int, error) {
	var snapshot *Snapshot
	if date != nil {
		found, err := store.GetSnapshot(ctx, *date)
		if err != nil {
			return nil, 0, err
		}
		snapshot = found
	} else {
		latest, err := store.ListSnapshots(ctx, &ListSnapshotsFilter{Limit: 1})
		if err != nil {
			return nil, 0, err
		}
		if len(latest) == 0 {
			return nil, 0, ErrSnapshotNotFound
		}
		snapshot = latest[0]
	}

	accounts, err := store.GetSnapshotAccounts(ctx, snapshot.Date, nil)
	if err != nil {
		return nil, 0, err
	}

	rows := make([]*AccountRow, 0, len(accounts))
	for _, a := range accounts {
		rows = append(rows, &AccountRow{
			Date:          snapshot.Date.Format(time.RFC3339),
			Account:       a.Account,
			LsuAmount:     a.LsuAmount,
			FundUnitsSent: a.FundUnitsSent,
		})
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return nil, 0, err
	}
	return snapshot, len(rows), nil
}
