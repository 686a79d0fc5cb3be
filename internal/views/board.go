package views

import (
	"context"
	"fmt"
	"io"
	"strings"

	"application-tracker/internal/models"
	"application-tracker/internal/tracker"
)

// Column is one kanban lane.
type Column struct {
	Status models.Status
	Title  string
	Cards  []models.JobApplication
}

type Board struct {
	src Source
}

func NewBoard(src Source) *Board {
	return &Board{src: src}
}

// Columns returns one lane per status in display order, every lane present
// even when empty. Cards are newest first.
func (b *Board) Columns() []Column {
	statuses := models.AllStatuses()
	cols := make([]Column, 0, len(statuses))
	for _, status := range statuses {
		cards := b.src.ByStatus(status)
		tracker.SortByRecency(cards)
		cols = append(cols, Column{
			Status: status,
			Title:  StatusTitle(status),
			Cards:  cards,
		})
	}
	return cols
}

// Move drops a card into another lane.
func (b *Board) Move(ctx context.Context, id string, to models.Status) bool {
	return b.src.UpdateStatus(ctx, id, to, nil)
}

func (b *Board) Render(w io.Writer) error {
	for _, col := range b.Columns() {
		if _, err := fmt.Fprintf(w, "%s (%d)\n", strings.ToUpper(col.Title), len(col.Cards)); err != nil {
			return err
		}
		for _, card := range col.Cards {
			line := fmt.Sprintf("  - %s @ %s [%s] %s", card.JobTitle, card.Company, shortID(card.ID), card.Location)
			if card.InterviewDate != nil {
				line += " interview " + formatDate(*card.InterviewDate)
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
