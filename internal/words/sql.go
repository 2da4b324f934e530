package words

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/models"
)

// CategoryRecord is the SQL row of a category
type CategoryRecord struct {
	Key      string       `gorm:"column:slug;primaryKey;size:64"`
	Label    string       `gorm:"size:128;not null"`
	Premium  bool         `gorm:"not null;default:false"`
	Position int          `gorm:"not null;default:0"`
	Words    []WordRecord `gorm:"foreignKey:CategoryKey;references:Key;constraint:OnDelete:CASCADE"`
}

// TableName overrides the default table name
func (CategoryRecord) TableName() string { return "word_categories" }

// WordRecord is the SQL row of a word
type WordRecord struct {
	ID           uint   `gorm:"primaryKey"`
	CategoryKey  string `gorm:"size:64;not null;uniqueIndex:idx_category_word"`
	Word         string `gorm:"size:128;not null;uniqueIndex:idx_category_word"`
	Hint         string `gorm:"size:255"`
	ImpostorHint string `gorm:"size:255"`
	Position     int    `gorm:"not null;default:0"`
}

// TableName overrides the default table name
func (WordRecord) TableName() string { return "words" }

// SQL is a catalog stored in a relational database
type SQL struct {
	db  *gorm.DB
	log *zap.Logger
}

// OpenSQL connects to driver (sqlite, postgres or mysql) and migrates the schema
func OpenSQL(driver, dsn string, log *zap.Logger) (*SQL, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var dialector gorm.Dialector
	switch driver {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "postgres", "postgresql":
		dialector = postgres.Open(dsn)
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported words driver: %s", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 &gormLogger{log: log, level: gormlogger.Warn},
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect words database: %w", err)
	}
	if err := db.AutoMigrate(&CategoryRecord{}, &WordRecord{}); err != nil {
		return nil, fmt.Errorf("migrate words schema: %w", err)
	}
	log.Info("words database ready", zap.String("driver", driver))
	return &SQL{db: db, log: log}, nil
}

// Close releases the underlying connection pool
func (s *SQL) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Seed upserts every category and word from src
func (s *SQL) Seed(ctx context.Context, src Catalog) error {
	categories, err := src.Categories()
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, c := range categories {
			rec := CategoryRecord{Key: c.Key, Label: c.Label, Premium: c.Premium, Position: i}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "slug"}},
				DoUpdates: clause.AssignmentColumns([]string{"label", "premium", "position"}),
			}).Omit("Words").Create(&rec).Error; err != nil {
				return fmt.Errorf("seed category %s: %w", c.Key, err)
			}

			words, err := src.Words(c.Key)
			if err != nil {
				return err
			}
			for j, w := range words {
				row := WordRecord{CategoryKey: c.Key, Word: w.Word, Hint: w.Hint, ImpostorHint: w.ImpostorHint, Position: j}
				if err := tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "category_key"}, {Name: "word"}},
					DoUpdates: clause.AssignmentColumns([]string{"hint", "impostor_hint", "position"}),
				}).Create(&row).Error; err != nil {
					return fmt.Errorf("seed word %s/%s: %w", c.Key, w.Word, err)
				}
			}
		}
		s.log.Info("words seeded", zap.Int("categories", len(categories)))
		return nil
	})
}

// Categories implements Catalog; word lists are left empty
func (s *SQL) Categories() ([]models.Category, error) {
	var rows []CategoryRecord
	if err := s.db.Order("position, slug").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]models.Category, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Category{Key: r.Key, Label: r.Label, Premium: r.Premium})
	}
	return out, nil
}

// Words implements Catalog
func (s *SQL) Words(category string) ([]models.Word, error) {
	var rows []WordRecord
	if err := s.db.Where("category_key = ?", category).Order("position, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list words of %s: %w", category, err)
	}
	if len(rows) == 0 {
		var n int64
		if err := s.db.Model(&CategoryRecord{}).Where("slug = ?", category).Count(&n).Error; err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
		}
	}
	out := make([]models.Word, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Word{Word: r.Word, Hint: r.Hint, ImpostorHint: r.ImpostorHint, Category: r.CategoryKey})
	}
	return out, nil
}

// gormLogger routes GORM output into zap
type gormLogger struct {
	log   *zap.Logger
	level gormlogger.LogLevel
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	return &gormLogger{log: l.log, level: level}
}

func (l *gormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Info {
		l.log.Sugar().Infof(msg, data...)
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.log.Sugar().Warnf(msg, data...)
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Error {
		l.log.Sugar().Errorf(msg, data...)
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && err != gormlogger.ErrRecordNotFound && l.level >= gormlogger.Error:
		sql, rows := fc()
		l.log.Error("sql error", zap.Error(err), zap.String("sql", sql), zap.Duration("elapsed", elapsed), zap.Int64("rows", rows))
	case elapsed > time.Second && l.level >= gormlogger.Warn:
		sql, rows := fc()
		l.log.Warn("slow sql", zap.String("sql", sql), zap.Duration("elapsed", elapsed), zap.Int64("rows", rows))
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		l.log.Debug("sql", zap.String("sql", sql), zap.Duration("elapsed", elapsed), zap.Int64("rows", rows))
	}
}
