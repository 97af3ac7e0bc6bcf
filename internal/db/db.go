package db

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"reservation-backend/config"
	"reservation-backend/internal/model"
)

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	log.Println("Running database migrations...")
	if err := db.AutoMigrate(
		&model.Site{},
		&model.Box{},
		&model.Reservation{},
		&model.Assignment{},
		&model.ScheduleRule{},
		&model.Obligation{},
		&model.PushSubscription{},
	); err != nil {
		return nil, fmt.Errorf("automigrate failed: %w", err)
	}

	if err := applyConstraintDDL(db); err != nil {
		return nil, err
	}

	log.Println("Database initialization complete.")
	return db, nil
}

// applyConstraintDDL adds the constraints AutoMigrate cannot express. The
// partial unique index backstops the transactional conflict check: even if two
// writers race past verification, identical (box, date, start) blocking rows
// cannot both commit.
func applyConstraintDDL(db *gorm.DB) error {
	ddls := []string{
		"ALTER TABLE reservations DROP CONSTRAINT IF EXISTS reservations_window_valid;",
		"ALTER TABLE reservations " +
			"ADD CONSTRAINT reservations_window_valid CHECK (start_time < end_time);",

		"CREATE UNIQUE INDEX IF NOT EXISTS idx_reservations_blocking_slot " +
			"ON reservations (box_id, date, start_time) " +
			"WHERE status IN ('pending', 'confirmed');",

		"ALTER TABLE obligations DROP CONSTRAINT IF EXISTS obligations_month_valid;",
		"ALTER TABLE obligations " +
			"ADD CONSTRAINT obligations_month_valid CHECK (month BETWEEN 1 AND 12);",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}
