package runtime

import (
	"errors"
	"time"

	"github.com/hedgefund-labs/fund-settler/internal/config"
	"go.uber.org/zap"
	"golang.org/x/mod/semver"
	"gorm.io/gorm"
)

var ErrOlderVersion = errors.New("runtime version is older than last seen version")

type SettlerRuntime struct {
	grm          *gorm.DB
	globalConfig *config.Config
	logger       *zap.Logger
}

func NewSettlerRuntime(grm *gorm.DB, globalConfig *config.Config, l *zap.Logger) *SettlerRuntime {
	return &SettlerRuntime{
		grm:          grm,
		globalConfig: globalConfig,
		logger:       l,
	}
}

func (s *SettlerRuntime) GetRecentlyLaunchedVersion() (*SettlerVersions, error) {
	var sv SettlerVersions
	res := s.grm.Model(&SettlerVersions{}).Order("id desc").First(&sv)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, res.Error
	}
	return &sv, nil
}

// ValidateAndUpdateVersion refuses to run a build older than the last one launched against
// this database, since older builds may not understand newer snapshot state.
func (s *SettlerRuntime) ValidateAndUpdateVersion(version string) error {
	if version == "" {
		return errors.New("empty version")
	}

	if version == "unknown" {
		s.logger.Sugar().Warnw("runtime version is unknown, not inserting into settler_versions", zap.String("version", version))
		return nil
	}
	if !semver.IsValid(version) {
		return errors.New("runtime version is not a valid semantic version")
	}

	lastSeenVersion, err := s.GetRecentlyLaunchedVersion()
	if err != nil {
		return err
	}

	if lastSeenVersion != nil {
		cmp := semver.Compare(version, lastSeenVersion.Version)
		if cmp < 0 {
			return ErrOlderVersion
		}
		if cmp == 0 {
			s.logger.Sugar().Infow("runtime version is the same as the last seen version", zap.String("version", version))
			return nil
		}
	}

	now := time.Now().UTC()
	res := s.grm.Model(&SettlerVersions{}).Create(&SettlerVersions{
		Version:   version,
		CreatedAt: &now,
	})
	return res.Error
}
