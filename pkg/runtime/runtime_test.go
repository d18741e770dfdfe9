package runtime

import (
	"testing"

	"github.com/hedgefund-labs/fund-settler/internal/config"
	"github.com/hedgefund-labs/fund-settler/internal/tests"
	"github.com/hedgefund-labs/fund-settler/pkg/logger"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup() (
	*gorm.DB,
	*zap.Logger,
	*config.Config,
	error,
) {
	cfg := tests.GetConfig()
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

	grm, err := tests.GetTestDatabase(cfg, l)
	if err != nil {
		return nil, nil, nil, err
	}
	return grm, l, cfg, nil
}

func Test_SettlerRuntime(t *testing.T) {
	grm, l, cfg, err := setup()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		tests.TeardownTestDatabase(grm)
	})

	rtime := NewSettlerRuntime(grm, cfg, l)

	countVersions := func() int64 {
		var count int64
		grm.Model(&SettlerVersions{}).Count(&count)
		return count
	}

	t.Run("Should insert a new version when there isnt one", func(t *testing.T) {
		err := rtime.ValidateAndUpdateVersion("v1.0.0")
		assert.Nil(t, err)
		assert.Equal(t, int64(1), countVersions())
	})
	t.Run("Should fail due to the version being older", func(t *testing.T) {
		err := rtime.ValidateAndUpdateVersion("v0.1.0")
		assert.ErrorIs(t, err, ErrOlderVersion)
	})
	t.Run("Should not insert the same version twice", func(t *testing.T) {
		err := rtime.ValidateAndUpdateVersion("v1.0.0")
		assert.Nil(t, err)
		assert.Equal(t, int64(1), countVersions())
	})
	t.Run("Should upgrade the version to a minor release", func(t *testing.T) {
		err := rtime.ValidateAndUpdateVersion("v1.1.0")
		assert.Nil(t, err)

		latest, err := rtime.GetRecentlyLaunchedVersion()
		assert.Nil(t, err)
		assert.Equal(t, "v1.1.0", latest.Version)
	})
	t.Run("Should upgrade the version with an RC suffix", func(t *testing.T) {
		err := rtime.ValidateAndUpdateVersion("v2.0.1-rc.1")
		assert.Nil(t, err)
	})
	t.Run("Should treat a commit suffix as the same version", func(t *testing.T) {
		err := rtime.ValidateAndUpdateVersion("v2.0.1-rc.1+abc123")
		assert.Nil(t, err)
		assert.Equal(t, int64(3), countVersions())
	})
	t.Run("Should skip unknown versions", func(t *testing.T) {
		assert.Nil(t, rtime.ValidateAndUpdateVersion("unknown"))
	})
	t.Run("Should reject invalid versions", func(t *testing.T) {
		assert.NotNil(t, rtime.ValidateAndUpdateVersion(""))
		assert.NotNil(t, rtime.ValidateAndUpdateVersion("1.0"))
	})
}
