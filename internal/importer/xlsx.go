// Package importer loads question-bank spreadsheets.
package importer

import (
	"context"
	"fmt"
	"strings"

	"github.com/mroshb/pair_quiz/internal/models"
	"github.com/mroshb/pair_quiz/internal/repositories"
	"github.com/mroshb/pair_quiz/pkg/logger"
	"github.com/xuri/excelize/v2"
)

// RowError describes a spreadsheet row that could not be turned into a question.
type RowError struct {
	Sheet  string
	Row    int
	Reason string
}

func (e RowError) Error() string {
	return fmt.Sprintf("%s row %d: %s", e.Sheet, e.Row, e.Reason)
}

// Result counts what Import did.
type Result struct {
	Created int
	Updated int
	Failed  int
}

// ParseWorkbook reads every sheet of f. Each row is "question | answer | answer...", the sheet name
// is the category, and a first row starting with "question" is treated as a header. Rows are
// numbered from 1 as in the spreadsheet.
func ParseWorkbook(f *excelize.File, publish bool) ([]models.Question, []RowError) {
	var questions []models.Question
	var rowErrors []RowError

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			rowErrors = append(rowErrors, RowError{Sheet: sheet, Reason: err.Error()})
			continue
		}

		for i, row := range rows {
			if isBlank(row) {
				continue
			}
			if i == 0 && strings.EqualFold(strings.TrimSpace(row[0]), "question") {
				continue
			}

			body := strings.TrimSpace(row[0])
			if body == "" {
				rowErrors = append(rowErrors, RowError{Sheet: sheet, Row: i + 1, Reason: "empty question"})
				continue
			}

			var answers []string
			for _, cell := range row[1:] {
				if a := strings.TrimSpace(cell); a != "" {
					answers = append(answers, a)
				}
			}
			if len(answers) == 0 {
				rowErrors = append(rowErrors, RowError{Sheet: sheet, Row: i + 1, Reason: "no accepted answers"})
				continue
			}

			questions = append(questions, models.Question{
				Body:           body,
				CorrectAnswers: answers,
				Category:       sheet,
				Published:      publish,
			})
		}
	}

	return questions, rowErrors
}

// Import upserts questions by body. A failing question is logged and counted, the rest still go in.
func Import(ctx context.Context, repo *repositories.QuestionRepository, questions []models.Question) Result {
	var res Result
	for i := range questions {
		created, err := repo.UpsertByBody(ctx, &questions[i])
		switch {
		case err != nil:
			res.Failed++
			logger.Warn("Failed to import question", "body", questions[i].Body, "error", err)
		case created:
			res.Created++
		default:
			res.Updated++
		}
	}
	return res
}

// Preview returns up to limit raw rows of every sheet.
func Preview(f *excelize.File, limit int) (map[string][][]string, error) {
	preview := make(map[string][][]string)
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, err
		}
		if len(rows) > limit {
			rows = rows[:limit]
		}
		preview[sheet] = rows
	}
	return preview, nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
