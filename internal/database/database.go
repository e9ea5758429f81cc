package database

import (
	"fmt"

	"heartlink/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Initialize(databaseURL string) (*gorm.DB, error) {
	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(databaseURL), config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logrus.Info("Database connected and migrated")
	return db, nil
}

// Migrate applies the schema. Exported so tests can run it against an
// in-memory SQLite database.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.ProfilePhoto{},
		&models.Hobby{},
		&models.UserHobby{},
		&models.OTP{},
		&models.UserSession{},
		&models.BlockedUser{},
		&models.Report{},
		&models.Like{},
		&models.Pass{},
		&models.Match{},
		&models.Message{},
		&models.Notification{},
		&models.Admin{},
	)
}

func SeedHobbies(db *gorm.DB) error {
	hobbies := []models.Hobby{
		{Name: "Music", Category: "Entertainment"},
		{Name: "Movies", Category: "Entertainment"},
		{Name: "Gaming", Category: "Entertainment"},
		{Name: "Sports", Category: "Sports"},
		{Name: "Fitness", Category: "Sports"},
		{Name: "Yoga", Category: "Sports"},
		{Name: "Travel", Category: "Lifestyle"},
		{Name: "Cooking", Category: "Lifestyle"},
		{Name: "Coffee", Category: "Lifestyle"},
		{Name: "Food", Category: "Lifestyle"},
		{Name: "Fashion", Category: "Lifestyle"},
		{Name: "Nature", Category: "Lifestyle"},
		{Name: "Photography", Category: "Arts"},
		{Name: "Dancing", Category: "Arts"},
		{Name: "Art", Category: "Arts"},
		{Name: "Reading", Category: "Education"},
		{Name: "Technology", Category: "Education"},
		{Name: "Languages", Category: "Education"},
		{Name: "Volunteering", Category: "Social"},
		{Name: "Pets", Category: "Social"},
	}

	for _, hobby := range hobbies {
		if err := db.FirstOrCreate(&hobby, models.Hobby{Name: hobby.Name}).Error; err != nil {
			return fmt.Errorf("failed to seed hobby %s: %w", hobby.Name, err)
		}
	}

	logrus.Info("Hobbies seeded")
	return nil
}
