// migrate manages the schema of a failcast SQLite prediction store. The
// store's own migrations are built in; -dir points at a directory of
// NNN_name.up.sql / NNN_name.down.sql files instead.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strconv"

	_ "modernc.org/sqlite"

	"github.com/chrissnell/failcast/internal/log"
	"github.com/chrissnell/failcast/internal/storage"
	"github.com/chrissnell/failcast/pkg/migrate"
)

func main() {
	var (
		dbPath         = flag.String("db", "", "Path to the SQLite prediction store")
		migrationDir   = flag.String("dir", "", "Migration directory (default: built-in store migrations)")
		migrationTable = flag.String("table", migrate.DefaultMigrationTable, "Migration table name")
		command        = flag.String("command", "up", "Migration command: up, down, to, version, status")
		targetVersion  = flag.String("target", "", "Target version for down/to commands")
		debug          = flag.Bool("debug", false, "Turn on debugging output")
		helpFlag       = flag.Bool("help", false, "Show help")
	)

	flag.Parse()

	if *helpFlag {
		showHelp()
		return
	}

	if err := log.Init(*debug); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *dbPath == "" {
		fmt.Fprintf(os.Stderr, "Error: -db flag is required\n")
		showHelp()
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		log.Fatalf("failed to ping database: %v", err)
	}

	var provider *migrate.FSProvider
	if *migrationDir != "" {
		provider = migrate.NewFileProvider(*migrationDir, *migrationTable, "sqlite")
	} else {
		provider = migrate.NewFSProvider(storage.SQLiteMigrations(), *migrationTable, "sqlite")
	}
	migrator := migrate.NewMigrator(db, provider, log.GetSugaredLogger())

	switch *command {
	case "up":
		err = migrator.MigrateUp()
	case "down":
		err = migrator.MigrateDown(requireTarget(*targetVersion, "down"))
	case "to":
		err = migrator.MigrateTo(requireTarget(*targetVersion, "to"))
	case "version":
		version, err := migrator.GetCurrentVersion()
		if err != nil {
			log.Fatalf("failed to get current version: %v", err)
		}
		fmt.Printf("Current version: %d\n", version)
		return
	case "status":
		err = showStatus(migrator)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", *command)
		showHelp()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("migration command failed: %v", err)
	}

	log.Info("migration completed successfully")
}

func requireTarget(target, command string) int {
	if target == "" {
		fmt.Fprintf(os.Stderr, "Error: -target flag is required for %s command\n", command)
		os.Exit(1)
	}
	v, err := strconv.Atoi(target)
	if err != nil {
		log.Fatalf("invalid target version: %v", err)
	}
	return v
}

func showStatus(migrator *migrate.Migrator) error {
	currentVersion, err := migrator.GetCurrentVersion()
	if err != nil {
		return err
	}

	pending, err := migrator.GetPendingMigrations()
	if err != nil {
		return fmt.Errorf("failed to get pending migrations: %w", err)
	}

	fmt.Printf("Current version: %d\n", currentVersion)
	fmt.Printf("Pending migrations: %d\n", len(pending))

	if len(pending) > 0 {
		fmt.Println("\nPending migrations:")
		for _, migration := range pending {
			fmt.Printf("  %d: %s\n", migration.Version, migration.Name)
		}
	}

	return nil
}

func showHelp() {
	fmt.Println("failcast prediction store migration tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  migrate -db predictions.db [flags]")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -db string         Path to the SQLite prediction store (required)")
	fmt.Println("  -dir string        Migration directory (default: built-in store migrations)")
	fmt.Println("  -table string      Migration table name (default: schema_migrations)")
	fmt.Println("  -command string    Migration command (default: up)")
	fmt.Println("  -target string     Target version for down/to commands")
	fmt.Println("  -debug             Turn on debugging output")
	fmt.Println("  -help              Show this help message")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  up                 Apply all pending migrations")
	fmt.Println("  down               Roll back to target version")
	fmt.Println("  to                 Migrate to specific version (up or down)")
	fmt.Println("  version            Show current migration version")
	fmt.Println("  status             Show migration status")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  migrate -db predictions.db -command status")
	fmt.Println("  migrate -db predictions.db -command down -target 1")
}
