package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"langarhall/internal/model"
	"langarhall/internal/provisioning"
	"langarhall/internal/report"
	"langarhall/internal/repository/sqlite"
)

func main() {
	dbPath := flag.String("db", "data/occupancy.db", "Database path")
	outDir := flag.String("out", "", "Directory for the report file (stdout when empty)")
	history := flag.Bool("history", false, "Export every stored snapshot instead of the latest requirements")
	session := flag.String("session", "", "Only export snapshots from this session (with -history)")
	limit := flag.Int("limit", 0, "Maximum number of snapshots to export (with -history, 0 = all)")
	flag.Parse()

	if _, err := os.Stat(*dbPath); err != nil {
		log.Fatalf("Database not found: %v", err)
	}

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	repo := sqlite.NewSnapshotRepository(db)

	if *history {
		records, err := repo.GetAll(&model.OccupancyFilter{SessionID: *session, Limit: *limit})
		if err != nil {
			log.Fatalf("Failed to load history: %v", err)
		}
		if err := writeHistory(*outDir, records); err != nil {
			log.Fatalf("Failed to write history: %v", err)
		}
		return
	}

	latest, err := repo.GetLatest()
	if err != nil {
		log.Fatalf("Failed to load latest snapshot: %v", err)
	}
	occupancy := 0
	if latest == nil {
		fmt.Fprintln(os.Stderr, "No snapshots stored yet, reporting for an empty hall")
	} else {
		occupancy = latest.Occupancy
	}

	table, err := provisioning.Compute(occupancy)
	if err != nil {
		log.Fatalf("Failed to compute requirements: %v", err)
	}

	if *outDir == "" {
		if err := report.WriteCSV(os.Stdout, table); err != nil {
			log.Fatalf("Failed to write report: %v", err)
		}
		return
	}

	path, err := report.SaveCSV(*outDir, table, time.Now())
	if err != nil {
		log.Fatalf("Failed to save report: %v", err)
	}
	fmt.Printf("✅ Report saved at %s\n", path)
}

func writeHistory(outDir string, records []model.OccupancyRecord) error {
	if outDir == "" {
		return report.WriteHistoryCSV(os.Stdout, records)
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}
	path := filepath.Join(outDir, "occupancy_history_"+time.Now().Format("20060102_150405")+".csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := report.WriteHistoryCSV(file, records); err != nil {
		return err
	}
	fmt.Printf("✅ Exported %d snapshots to %s\n", len(records), path)
	return file.Close()
}
