package db

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dorm-booking-backend/config"
	"dorm-booking-backend/internal/model"
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
	if err := Migrate(db); err != nil {
		return nil, err
	}

	if cfg.EnableConstraints {
		log.Println("Applying allocation constraint DDL...")
		if err := applyConstraintDDL(db); err != nil {
			return nil, err
		}
	}

	log.Println("Database initialization complete.")
	return db, nil
}

// Migrate creates or updates the schema for every engine entity.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.ReservableResource{},
		&model.Reservation{},
		&model.DormitoryKey{},
		&model.KeyAssignment{},
		&model.Event{},
		&model.PushSubscription{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

// applyConstraintDDL installs the Postgres-level guarantees behind the two
// allocation invariants: no overlapping active reservations per resource,
// and at most one open assignment per key. The engine re-checks both inside
// its transactions; the constraints are the backstop.
func applyConstraintDDL(db *gorm.DB) error {
	ddls := []string{
		"CREATE EXTENSION IF NOT EXISTS btree_gist;",

		// Active reservations on the same resource must not overlap.
		// Half-open ranges: a reservation ending at 10:00 and one starting
		// at 10:00 do not collide.
		"ALTER TABLE reservations " +
			"ADD CONSTRAINT reservations_window_valid CHECK (start_time < end_time);",
		"ALTER TABLE reservations " +
			"ADD CONSTRAINT reservations_no_overlap EXCLUDE USING gist " +
			"(resource_id WITH =, tstzrange(start_time, end_time, '[)') WITH &&) " +
			"WHERE (status IN ('pending', 'confirmed', 'checked_in'));",

		// One open custody record per key.
		"CREATE UNIQUE INDEX IF NOT EXISTS key_assignments_one_open_per_key " +
			"ON key_assignments (key_id) " +
			"WHERE status IN ('active', 'overdue');",

		// Open assignments by user, for the pickup coupling reads.
		"CREATE INDEX IF NOT EXISTS key_assignments_open_by_user " +
			"ON key_assignments (user_id) " +
			"WHERE status IN ('active', 'overdue');",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}
