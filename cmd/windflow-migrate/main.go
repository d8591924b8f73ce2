package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var (
	dataDir    = flag.String("data-dir", "/var/lib/windflow", "WindFlow data directory")
	dryRun     = flag.Bool("dry-run", false, "Show what would be migrated without making changes")
	backupPath = flag.String("backup", "", "Path to backup the database before migration (default: <data-dir>/windflow.db.backup)")
)

func main() {
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("WindFlow Database Migration Tool - deploys → deployments")
	log.Println("========================================================")

	dbPath := filepath.Join(*dataDir, "windflow.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		log.Fatalf("Database not found at %s", dbPath)
	}

	log.Printf("Database: %s", dbPath)
	log.Printf("Dry run: %v", *dryRun)

	// Create backup unless in dry-run mode
	if !*dryRun {
		backupFile := *backupPath
		if backupFile == "" {
			backupFile = dbPath + ".backup"
		}
		log.Printf("Creating backup: %s", backupFile)
		if err := copyFile(dbPath, backupFile); err != nil {
			log.Fatalf("Failed to create backup: %v", err)
		}
		log.Println("✓ Backup created successfully")
	}

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := migrateDeploysToDeployments(db, *dryRun); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	if *dryRun {
		log.Println("\nDry run completed. No changes made.")
		log.Println("Run without --dry-run to perform the migration.")
	} else {
		log.Println("\n✓ Migration completed successfully!")
		log.Println("Old 'deploys' bucket has been preserved for rollback if needed.")
		log.Println("After verifying the migration, you can manually delete it using:")
		log.Printf("  bolt db rm %s deploys", dbPath)
	}
}

// migrateDeploysToDeployments copies rows from the legacy 'deploys'
// bucket into 'deployments', backfilling the RenderedTargetParameters
// field older releases never wrote.
func migrateDeploysToDeployments(db *bolt.DB, dryRun bool) error {
	var rowCount int
	var migratedCount int

	// First, inspect what exists
	err := db.View(func(tx *bolt.Tx) error {
		legacyBucket := tx.Bucket([]byte("deploys"))
		if legacyBucket == nil {
			log.Println("✓ No 'deploys' bucket found - database is already using new schema")
			return nil
		}

		if tx.Bucket([]byte("deployments")) != nil {
			log.Println("⚠ Warning: Both 'deploys' and 'deployments' buckets exist")
		}

		legacyBucket.ForEach(func(k, v []byte) error {
			rowCount++
			return nil
		})

		log.Printf("Found %d deployments to migrate", rowCount)
		return nil
	})

	if err != nil {
		return err
	}

	if rowCount == 0 {
		log.Println("✓ No deployments found to migrate")
		return nil
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if dryRun {
			log.Println("\n[DRY RUN] Would perform the following operations:")
			log.Println("1. Create 'deployments' bucket")
			log.Println("2. Copy all data from 'deploys' to 'deployments'")
			log.Printf("3. Migrate %d deployment records, backfilling RenderedTargetParameters", rowCount)
			log.Println("4. Preserve 'deploys' bucket for rollback")
			return nil
		}

		newBucket, err := tx.CreateBucketIfNotExists([]byte("deployments"))
		if err != nil {
			return fmt.Errorf("failed to create deployments bucket: %w", err)
		}

		legacyBucket := tx.Bucket([]byte("deploys"))
		if legacyBucket == nil {
			return nil // Already migrated
		}

		log.Println("\nMigrating deploys to deployments...")
		err = legacyBucket.ForEach(func(k, v []byte) error {
			var row map[string]interface{}
			if err := json.Unmarshal(v, &row); err != nil {
				log.Printf("⚠ Warning: Skipping invalid JSON for key %s: %v", k, err)
				return nil
			}

			// Older releases stored no rendered target parameters.
			if row["RenderedTargetParameters"] == nil {
				row["RenderedTargetParameters"] = map[string]interface{}{}
			}

			data, err := json.Marshal(row)
			if err != nil {
				return fmt.Errorf("failed to re-encode deployment %s: %w", k, err)
			}
			if err := newBucket.Put(k, data); err != nil {
				return fmt.Errorf("failed to copy deployment %s: %w", k, err)
			}

			migratedCount++
			if migratedCount%10 == 0 {
				log.Printf("  Migrated %d/%d...", migratedCount, rowCount)
			}
			return nil
		})

		if err != nil {
			return err
		}

		log.Printf("✓ Migrated %d/%d deployments", migratedCount, rowCount)
		log.Println("✓ Preserved 'deploys' bucket for rollback")

		return nil
	})

	return err
}

func copyFile(src, dst string) error {
	input, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, input, 0600)
}
