package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/mroshb/pair_quiz/internal/config"
	"github.com/mroshb/pair_quiz/internal/database"
	"github.com/mroshb/pair_quiz/internal/importer"
	"github.com/mroshb/pair_quiz/internal/repositories"
	"github.com/mroshb/pair_quiz/pkg/logger"
	"github.com/xuri/excelize/v2"
)

func main() {
	file := flag.String("file", "questions.xlsx", "xlsx workbook: one sheet per category, rows of question | answer | answer...")
	publish := flag.Bool("publish", true, "publish imported questions")
	dryRun := flag.Bool("dry-run", false, "parse and report without writing")
	inspect := flag.Int("inspect", 0, "print the first N rows of every sheet and exit")
	flag.Parse()

	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	logger.Init()
	defer logger.Sync()

	f, err := excelize.OpenFile(*file)
	if err != nil {
		logger.Fatal("Failed to open workbook", err)
	}
	defer f.Close()

	if *inspect > 0 {
		preview, err := importer.Preview(f, *inspect)
		if err != nil {
			logger.Fatal("Failed to read workbook", err)
		}
		for _, sheet := range f.GetSheetList() {
			fmt.Printf("Sheet: %s\n", sheet)
			for i, row := range preview[sheet] {
				fmt.Printf("  Row %d: %v\n", i+1, row)
			}
		}
		return
	}

	questions, rowErrors := importer.ParseWorkbook(f, *publish)
	for _, rowErr := range rowErrors {
		logger.Warn("Skipping row", "sheet", rowErr.Sheet, "row", rowErr.Row, "reason", rowErr.Reason)
	}
	logger.Info("Parsed workbook", "file", *file, "questions", len(questions), "skipped", len(rowErrors))

	if *dryRun {
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	res := importer.Import(context.Background(), repositories.NewQuestionRepository(db), questions)
	logger.Info("Import finished", "created", res.Created, "updated", res.Updated, "failed", res.Failed)
	fmt.Printf("Successfully imported %d questions (%d new, %d updated).\n", res.Created+res.Updated, res.Created, res.Updated)
}
