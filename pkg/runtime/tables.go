package runtime

import "time"

type SettlerVersions struct {
	Id        uint64 `gorm:"primaryKey;autoIncrement"`
	Version   string
	CreatedAt *time.Time
}
