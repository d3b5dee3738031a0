package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/neurobridge-player/internal/domain"
	"github.com/yungbote/neurobridge-player/internal/observability"
	nberrors "github.com/yungbote/neurobridge-player/internal/pkg/errors"
	"github.com/yungbote/neurobridge-player/internal/platform/logger"
)

// LegacyCourseCache is one cached legacy map row.
type LegacyCourseCache struct {
	CourseID  string         `gorm:"column:course_id;primaryKey" json:"course_id"`
	Payload   datatypes.JSON `gorm:"column:payload;not null" json:"payload"`
	UpdatedAt time.Time      `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (LegacyCourseCache) TableName() string { return "legacy_course_caches" }

type GormCache struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGormCache(db *gorm.DB, baseLog *logger.Logger) *GormCache {
	return &GormCache{db: db, log: baseLog.With("cache", "GormCache")}
}

// AutoMigrate creates the cache table.
func (c *GormCache) AutoMigrate() error {
	return c.db.AutoMigrate(&LegacyCourseCache{})
}

func (c *GormCache) Get(ctx context.Context, courseID string) (domain.LegacyCourseMap, bool, error) {
	var row LegacyCourseCache
	err := c.db.WithContext(ctx).Where("course_id = ?", courseID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		observability.Current().IncCacheOp("gorm", "get", "miss")
		return nil, false, nil
	}
	if err != nil {
		observability.Current().IncCacheOp("gorm", "get", "error")
		return nil, false, fmt.Errorf("load legacy cache %s: %w", courseID, classifyDBError(err))
	}
	var m domain.LegacyCourseMap
	if err := json.Unmarshal(row.Payload, &m); err != nil {
		c.log.Warn("ignoring undecodable legacy cache row", "course_id", courseID, "error", err)
		observability.Current().IncCacheOp("gorm", "get", "corrupt")
		return nil, false, nil
	}
	observability.Current().IncCacheOp("gorm", "get", "hit")
	return m, true, nil
}

func (c *GormCache) Put(ctx context.Context, courseID string, m domain.LegacyCourseMap) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	row := LegacyCourseCache{CourseID: courseID, Payload: datatypes.JSON(b), UpdatedAt: time.Now().UTC()}
	err = c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "course_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		observability.Current().IncCacheOp("gorm", "put", "error")
		return fmt.Errorf("save legacy cache %s: %w", courseID, classifyDBError(err))
	}
	observability.Current().IncCacheOp("gorm", "put", "ok")
	return nil
}

// classifyDBError marks transient postgres failures (lost connection,
// serialization, deadlock, lock timeout, shutdown) as ErrNetwork.
func classifyDBError(err error) error {
	if err == nil {
		return nil
	}
	if pgconn.Timeout(err) {
		return fmt.Errorf("%w: %w", nberrors.ErrNetwork, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		code := strings.TrimSpace(pgErr.Code)
		switch {
		case strings.HasPrefix(code, "08"), code == "40001", code == "40P01", code == "55P03", code == "57P01":
			return fmt.Errorf("%w: %w", nberrors.ErrNetwork, err)
		}
	}
	return err
}
