package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/mroshb/pair_quiz/internal/config"
	"github.com/mroshb/pair_quiz/internal/models"
	"github.com/mroshb/pair_quiz/pkg/logger"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Dialector picks the gorm driver for cfg.DBDriver.
func Dialector(cfg *config.Config) (gorm.Dialector, error) {
	dsn := cfg.GetDSN()

	switch cfg.DBDriver {
	case config.DriverPostgres, "":
		return postgres.Open(dsn), nil
	case config.DriverMySQL:
		return mysql.Open(dsn), nil
	case config.DriverSQLite:
		return sqlite.Open(sqliteDSN(dsn)), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}
}

// sqliteDSN turns on foreign keys so game rows cascade like on the server databases.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=1&_busy_timeout=5000"
}

func Connect(cfg *config.Config) (*gorm.DB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}

	var logLevel gormlogger.LogLevel
	if cfg.AppEnv == "development" {
		logLevel = gormlogger.Info
	} else {
		logLevel = gormlogger.Silent
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		SkipDefaultTransaction: true, // Skip wrapping every operation in a transaction
		PrepareStmt:            true, // Cache prepared statements
		TranslateError:         true, // Surface unique violations as gorm.ErrDuplicatedKey
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if cfg.DBDriver == config.DriverSQLite {
		// SQLite has a single writer; one connection serializes transactions
		// the way row locks do on the server databases.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(50)
		sqlDB.SetMaxOpenConns(500)
		sqlDB.SetConnMaxLifetime(time.Hour)
		sqlDB.SetConnMaxIdleTime(10 * time.Minute)
	}

	logger.Info("Database connected", "driver", db.Dialector.Name())
	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	logger.Info("Running database migrations...")

	err := db.AutoMigrate(
		&models.User{},
		&models.Question{},
		&models.PairGame{},
		&models.GameQuestion{},
		&models.GameAnswer{},
	)

	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// SeedQuestions publishes a starter question set when the bank has fewer than minPublished questions.
func SeedQuestions(db *gorm.DB, minPublished int) error {
	logger.Info("Checking for published questions...")

	var count int64
	if err := db.Model(&models.Question{}).Where("published = ?", true).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count questions: %w", err)
	}
	if count >= int64(minPublished) {
		return nil
	}

	logger.Info("Seeding quiz questions...", "published", count)
	questions := []models.Question{
		{Body: "What is the capital of France?", CorrectAnswers: []string{"Paris"}, Category: "geography"},
		{Body: "Which planet is known as the Red Planet?", CorrectAnswers: []string{"Mars"}, Category: "science"},
		{Body: "What is the largest ocean on Earth?", CorrectAnswers: []string{"Pacific", "Pacific Ocean"}, Category: "geography"},
		{Body: "Who invented the telephone?", CorrectAnswers: []string{"Alexander Graham Bell", "Bell"}, Category: "history"},
		{Body: "What is the currency of Japan?", CorrectAnswers: []string{"Yen"}, Category: "economy"},
		{Body: "How many sides does a hexagon have?", CorrectAnswers: []string{"6", "six"}, Category: "math"},
		{Body: "What is the chemical symbol for gold?", CorrectAnswers: []string{"Au"}, Category: "science"},
		{Body: "Which programming language introduced goroutines?", CorrectAnswers: []string{"Go", "Golang"}, Category: "tech"},
		{Body: "What is 7 multiplied by 8?", CorrectAnswers: []string{"56", "fifty-six"}, Category: "math"},
		{Body: "In which year did World War II end?", CorrectAnswers: []string{"1945"}, Category: "history"},
	}

	for _, q := range questions {
		q.Published = true
		var existing models.Question
		err := db.Where("body = ?", q.Body).First(&existing).Error
		if err == gorm.ErrRecordNotFound {
			if err := db.Create(&q).Error; err != nil {
				return fmt.Errorf("failed to seed question: %w", err)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to look up question: %w", err)
		}
		if !existing.Published {
			if err := db.Model(&existing).UpdateColumn("published", true).Error; err != nil {
				return fmt.Errorf("failed to publish question: %w", err)
			}
		}
	}

	return nil
}
