package infrastructure

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"recruit-pipeline/config"
	"recruit-pipeline/domain"
)

func NewDatabase(cfg *config.Config, log logrus.FieldLogger) (*gorm.DB, error) {
	if cfg.DBDSN == "" {
		return nil, errors.New("DB_DSN is not set in environment")
	}

	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "postgres":
		dialector = postgres.Open(cfg.DBDSN)
	default:
		dialector = mysql.Open(cfg.DBDSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	deadline := time.Now().Add(30 * time.Second)
	backoff := 500 * time.Millisecond
	for {
		err := sqlDB.Ping()
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		log.WithError(err).Warn("database not ready yet")
		time.Sleep(backoff)
		if backoff < 5*time.Second {
			backoff *= 2
		}
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	if err := SeedReference(db, cfg.SeedFile, log); err != nil {
		return nil, err
	}

	log.WithField("driver", cfg.DBDriver).Info("connected to database and migrated schema")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&domain.Region{},
		&domain.Job{},
		&domain.Applicant{},
		&domain.Attachment{},
		&domain.Candidate{},
		&domain.RoundRecord{},
		&domain.OperationLog{},
		&domain.OperationLogArchive{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

type seedRegion struct {
	Name string       `yaml:"name"`
	Jobs []domain.Job `yaml:"jobs"`
}

type seedFile struct {
	Regions []seedRegion `yaml:"regions"`
}

var defaultSeed = seedFile{Regions: []seedRegion{
	{Name: "Head Office", Jobs: []domain.Job{
		{Title: "Backend Engineer", Description: "Go services, MySQL, RabbitMQ", Active: true},
		{Title: "HR Specialist", Description: "Recruitment operations", Active: true},
	}},
}}

// SeedReference inserts regions and jobs once, from path when given.
func SeedReference(db *gorm.DB, path string, log logrus.FieldLogger) error {
	var count int64
	if err := db.Model(&domain.Region{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count regions: %w", err)
	}
	if count > 0 {
		return nil
	}

	seed := defaultSeed
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read seed file: %w", err)
		}
		seed = seedFile{}
		if err := yaml.Unmarshal(raw, &seed); err != nil {
			return fmt.Errorf("failed to parse seed file: %w", err)
		}
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		for _, r := range seed.Regions {
			region := domain.Region{Name: r.Name}
			if err := tx.Create(&region).Error; err != nil {
				return err
			}
			for _, j := range r.Jobs {
				job := domain.Job{RegionID: region.ID, Title: j.Title, Description: j.Description, Active: j.Active}
				if err := tx.Create(&job).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to seed reference data: %w", err)
	}
	log.WithField("regions", len(seed.Regions)).Info("seeded reference data")
	return nil
}
