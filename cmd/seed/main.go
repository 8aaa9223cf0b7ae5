// Seeds the database with an admin and a demo user.
package main

import (
	"flag"
	"fmt"

	"github.com/example/storefront/pkg/auth"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	db, err := repository.NewMySQL(&cfg.MySQL)
	if err != nil {
		logger.Fatal("Failed to connect to MySQL", zap.Error(err))
	}
	if err := repository.Migrate(db); err != nil {
		logger.Fatal("Failed to migrate", zap.Error(err))
	}

	hash, err := auth.HashPassword("password")
	if err != nil {
		logger.Fatal("Failed to hash password", zap.Error(err))
	}

	seeds := []models.User{
		{
			ID:       uuid.NewString(),
			Name:     "admin",
			Email:    "admin@gmail.com",
			Password: hash,
			Role:     models.RoleAdmin,
		},
		{
			ID:       uuid.NewString(),
			Name:     "Robin Sharma",
			Email:    "robin@gmail.com",
			Password: hash,
			Role:     models.RoleUser,
		},
	}

	for _, user := range seeds {
		var existing models.User
		err := db.Where("email = ?", user.Email).First(&existing).Error
		if err == nil {
			logger.Info("User already seeded", zap.String("email", user.Email))
			continue
		}

		if err := db.Create(&user).Error; err != nil {
			logger.Fatal("Failed to seed user", zap.String("email", user.Email), zap.Error(err))
		}
		logger.Info("Seeded user",
			zap.String("email", user.Email),
			zap.String("role", string(user.Role)))
	}
}
