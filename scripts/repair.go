//go:build ignore

package main

import (
	"fmt"
	"log"

	"github.com/graemedakers/decision-jar/internal/database"
	"github.com/graemedakers/decision-jar/internal/database/models"
	"github.com/graemedakers/decision-jar/pkg/config"
	"github.com/graemedakers/decision-jar/pkg/util"
	"github.com/joho/godotenv"
)

// Repairs referential drift left behind by crashes or by bugs in older
// builds: active-jar pointers at jars the user no longer belongs to, and
// memberships pointing at deleted jars or users.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	// Null active-jar pointers at jars that no longer exist
	result := db.Exec(`
		UPDATE users SET active_jar_id = NULL
		WHERE active_jar_id IS NOT NULL
		  AND active_jar_id NOT IN (SELECT id FROM jars WHERE deleted_at IS NULL)`)
	if result.Error != nil {
		log.Fatalf("failed to clear dangling active-jar pointers: %v", result.Error)
	}
	fmt.Printf("Cleared %d dangling active-jar pointers\n", result.RowsAffected)

	// Null active-jar pointers where the user has no active membership
	result = db.Exec(`
		UPDATE users SET active_jar_id = NULL
		WHERE active_jar_id IS NOT NULL
		  AND NOT EXISTS (
			SELECT 1 FROM memberships m
			WHERE m.user_id = users.id
			  AND m.jar_id = users.active_jar_id
			  AND m.status = ?
			  AND m.deleted_at IS NULL)`, models.MembershipActive)
	if result.Error != nil {
		log.Fatalf("failed to clear non-member active-jar pointers: %v", result.Error)
	}
	fmt.Printf("Cleared %d active-jar pointers without a backing membership\n", result.RowsAffected)

	// Remove memberships whose jar is gone
	result = db.Exec(`
		DELETE FROM memberships
		WHERE jar_id NOT IN (SELECT id FROM jars WHERE deleted_at IS NULL)`)
	if result.Error != nil {
		log.Fatalf("failed to remove orphaned memberships: %v", result.Error)
	}
	fmt.Printf("Removed %d orphaned memberships\n", result.RowsAffected)

	fmt.Println("Repair complete")
}
