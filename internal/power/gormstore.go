package power

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// configRow is the persisted form of Config. "group" is reserved in SQL,
// hence the column name.
type configRow struct {
	ID          string          `gorm:"primaryKey;size:6"`
	Group       string          `gorm:"column:group_name;uniqueIndex;not null;size:64"`
	Power       decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (configRow) TableName() string { return "power_configs" }

func (r configRow) config() Config {
	return Config{ID: r.ID, Group: r.Group, Power: r.Power, Description: r.Description}
}

// GormStore keeps configs in a SQL table through gorm.
type GormStore struct {
	db *gorm.DB
}

// OpenDB picks the driver from the DSN: postgres:// and postgresql:// URLs
// use postgres, anything else is treated as a sqlite path.
func OpenDB(dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		dialector = postgres.Open(dsn)
	default:
		dialector = sqlite.Open(strings.TrimPrefix(dsn, "sqlite://"))
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, storeErr("open", err)
	}
	return db, nil
}

// NewGormStore migrates the power_configs table.
func NewGormStore(ctx context.Context, db *gorm.DB) (*GormStore, error) {
	if err := db.WithContext(ctx).AutoMigrate(&configRow{}); err != nil {
		return nil, storeErr("migrate", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) List(ctx context.Context) ([]Config, error) {
	var rows []configRow
	if err := s.db.WithContext(ctx).Order("group_name").Find(&rows).Error; err != nil {
		return nil, storeErr("list", err)
	}
	out := make([]Config, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.config())
	}
	return out, nil
}

func (s *GormStore) first(ctx context.Context, query string, arg any) (Config, error) {
	var row configRow
	err := s.db.WithContext(ctx).Where(query, arg).First(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return Config{}, fmt.Errorf("%w: %v", ErrNotFound, arg)
	case err != nil:
		return Config{}, storeErr("get", err)
	}
	return row.config(), nil
}

func (s *GormStore) GetByGroup(ctx context.Context, group string) (Config, error) {
	return s.first(ctx, "group_name = ?", group)
}

func (s *GormStore) GetByID(ctx context.Context, id string) (Config, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *GormStore) Create(ctx context.Context, c Config) (Config, error) {
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&configRow{}).Where("group_name = ?", c.Group).Count(&n).Error; err != nil {
			return storeErr("create", err)
		}
		if n > 0 {
			return fmt.Errorf("%w: %s", ErrGroupExists, c.Group)
		}
		id, err := uniqueID(func(id string) (bool, error) {
			var n int64
			if err := tx.Model(&configRow{}).Where("id = ?", id).Count(&n).Error; err != nil {
				return false, storeErr("create", err)
			}
			return n > 0, nil
		})
		if err != nil {
			return err
		}
		c.ID = id
		row := configRow{ID: c.ID, Group: c.Group, Power: c.Power, Description: c.Description}
		if err := tx.Create(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: %s", ErrGroupExists, c.Group)
			}
			return storeErr("create", err)
		}
		return nil
	})
	if err != nil {
		return Config{}, err
	}
	return c, nil
}

func (s *GormStore) Update(ctx context.Context, group string, c Config) (Config, error) {
	c.Group = group
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	res := s.db.WithContext(ctx).Model(&configRow{}).
		Where("group_name = ?", group).
		Updates(map[string]any{"power": c.Power, "description": c.Description})
	if res.Error != nil {
		return Config{}, storeErr("update", res.Error)
	}
	if res.RowsAffected == 0 {
		return Config{}, fmt.Errorf("%w: group %s", ErrNotFound, group)
	}
	return s.GetByGroup(ctx, group)
}

func (s *GormStore) Delete(ctx context.Context, group string) error {
	res := s.db.WithContext(ctx).Where("group_name = ?", group).Delete(&configRow{})
	if res.Error != nil {
		return storeErr("delete", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: group %s", ErrNotFound, group)
	}
	return nil
}

func (s *GormStore) SetAllPowers(ctx context.Context, p decimal.Decimal) ([]Config, error) {
	if p.IsNegative() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPower, p)
	}
	res := s.db.WithContext(ctx).Model(&configRow{}).Where("1 = 1").Update("power", p)
	if res.Error != nil {
		return nil, storeErr("set powers", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: no configurations", ErrNotFound)
	}
	return s.List(ctx)
}
