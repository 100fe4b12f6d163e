package database

import (
	"schoolsite-app/internal/domain/billing"
	"schoolsite-app/internal/domain/bookings"
	"schoolsite-app/internal/domain/communications"
	"schoolsite-app/internal/domain/plans"
	"schoolsite-app/internal/domain/subscriptions"
	"schoolsite-app/internal/domain/tenants"
	"schoolsite-app/internal/domain/users"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

func InitDB(dsn string, log *zap.Logger) {
	if dsn == "" {
		log.Fatal("DB_URL not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		// maps unique violations to gorm.ErrDuplicatedKey
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	DB = db

	if err := DB.AutoMigrate(
		// billing
		&plans.Plan{},
		&subscriptions.Subscription{},
		&billing.ProcessedEvent{},

		// tenancy
		&tenants.Tenant{},
		&users.User{},
		&users.Membership{},
		&users.Child{},

		// site content
		&bookings.Event{},
		&bookings.Appointment{},
		&communications.Communication{},
	); err != nil {
		log.Fatal("AutoMigrate error", zap.Error(err))
	}

	for _, stmt := range bookings.UniqueIndexSQL {
		if err := DB.Exec(stmt).Error; err != nil {
			log.Fatal("failed to create booking indexes", zap.Error(err))
		}
	}

	log.Info("connected and migrated successfully")
}

func Close() {
	if DB == nil {
		return
	}
	if sqlDB, err := DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
