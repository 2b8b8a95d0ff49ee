package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"homeserve/internal/config"
	"homeserve/internal/database"
	"homeserve/internal/export"
	"homeserve/internal/logging"
	"homeserve/internal/models"
)

// report builds a period XLSX for bookings and, when Google credentials are
// configured, refreshes the back-office spreadsheet.
func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	var (
		fromStr = flag.String("from", "", "period start, YYYY-MM-DD (default: 30 days ago)")
		toStr   = flag.String("to", "", "period end, YYYY-MM-DD (default: today)")
		sheets  = flag.Bool("sheets", false, "also refresh the Google spreadsheet")
	)
	flag.Parse()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}
	logger := baseLogger.With().Str("component", "report").Logger()

	now := time.Now()
	startDate := now.AddDate(0, 0, -30)
	endDate := now
	if *fromStr != "" {
		if startDate, err = time.Parse("2006-01-02", *fromStr); err != nil {
			return fmt.Errorf("invalid -from: %w", err)
		}
	}
	if *toStr != "" {
		if endDate, err = time.Parse("2006-01-02", *toStr); err != nil {
			return fmt.Errorf("invalid -to: %w", err)
		}
	}
	if endDate.Before(startDate) {
		return fmt.Errorf("period end is before period start")
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	bookings, err := db.GetBookingsByDateRange(ctx, startDate, endDate.AddDate(0, 0, 1))
	if err != nil {
		return fmt.Errorf("load bookings: %w", err)
	}

	exportPath := cfg.Exports.Path
	if exportPath == "" {
		exportPath = "exports"
	}
	filePath, err := export.WriteExcelReport(exportPath, bookings, startDate, endDate)
	if err != nil {
		return err
	}
	logger.Info().Str("file_path", filePath).Int("bookings", len(bookings)).Msg("report written")

	if *sheets {
		if cfg.Google.GoogleCredentialsFile == "" || cfg.Google.BookingSpreadSheetID == "" {
			return fmt.Errorf("google credentials are not configured")
		}
		sheetsService, err := export.NewSheetsService(cfg.Google.GoogleCredentialsFile, cfg.Google.BookingSpreadSheetID)
		if err != nil {
			return err
		}
		if err := sheetsService.SyncBookings(ctx, bookings); err != nil {
			return fmt.Errorf("sync bookings sheet: %w", err)
		}

		var history []models.StatusHistoryEntry
		for _, b := range bookings {
			entries, err := db.GetStatusHistory(ctx, b.BookingID)
			if err != nil {
				return fmt.Errorf("load history for %s: %w", b.BookingID, err)
			}
			history = append(history, entries...)
		}
		if err := sheetsService.SyncHistory(ctx, history); err != nil {
			return fmt.Errorf("sync history sheet: %w", err)
		}
		logger.Info().Msg("google spreadsheet refreshed")
	}

	return nil
}
