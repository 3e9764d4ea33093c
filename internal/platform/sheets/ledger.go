// Package sheets implements ledger.Ledger on a Google Sheets worksheet.
//
// The worksheet layout is detected from its header row on every operation.
// Two layouts are understood: the studio layout
// (Проект, Задача, Статус, Ссылка, Приоритет, Тип, Plan) and a minimal
// English one (Title, Priority, CreatedAt). A missing worksheet is created with
// the studio header.
package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/phrazzld/tasktracker/internal/config"
	"github.com/phrazzld/tasktracker/internal/domain"
	"github.com/phrazzld/tasktracker/internal/ledger"
)

// Header names of the studio layout.
const (
	colProject  = "Проект"
	colTask     = "Задача"
	colStatus   = "Статус"
	colLink     = "Ссылка"
	colPriority = "Приоритет"
	colType     = "Тип"
	colPlan     = "Plan"
)

// Header names of the minimal layout.
const (
	colTitle     = "Title"
	colPriorityE = "Priority"
	colCreatedAt = "CreatedAt"
)

// StudioHeader is written to a newly created worksheet.
var StudioHeader = []string{colProject, colTask, colStatus, colLink, colPriority, colType, colPlan}

// Default cell values for new studio rows.
const (
	defaultStatus = "ToDo"
	defaultPlan   = "Unplanned"
)

// Ledger is a ledger.Ledger backed by one worksheet.
type Ledger struct {
	client valuesClient
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	ready bool
}

var _ ledger.Ledger = (*Ledger)(nil)

// New connects to the spreadsheet described by cfg.
func New(ctx context.Context, cfg config.LedgerConfig, logger *slog.Logger) (*Ledger, error) {
	client, err := newAPIClient(ctx, cfg.SpreadsheetID, cfg.WorksheetName, cfg.Credentials)
	if err != nil {
		return nil, err
	}
	return newLedger(client, logger), nil
}

func newLedger(client valuesClient, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		client: client,
		logger: logger.With("component", "sheets_ledger"),
		now:    time.Now,
	}
}

// layout maps header names to 1-based column numbers.
type layout map[string]int

func parseLayout(values [][]string) layout {
	l := layout{}
	if len(values) == 0 {
		return l
	}
	for i, name := range values[0] {
		if name = strings.TrimSpace(name); name != "" {
			if _, dup := l[name]; !dup {
				l[name] = i + 1
			}
		}
	}
	return l
}

func (l layout) studio() bool {
	return l[colTask] > 0 && l.priorityCol() > 0
}

func (l layout) priorityCol() int {
	if c := l[colPriority]; c > 0 {
		return c
	}
	return l[colPriorityE]
}

func (l layout) titleCol() int {
	if c := l[colTask]; c > 0 {
		return c
	}
	if c := l[colTitle]; c > 0 {
		return c
	}
	return 1
}

func cell(row []string, col int) string {
	if col <= 0 || col > len(row) {
		return ""
	}
	return strings.TrimSpace(row[col-1])
}

func (s *Ledger) load(ctx context.Context, op string) ([][]string, layout, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, nil, s.unavailable(op, err)
	}
	values, err := s.client.Values(ctx)
	if err != nil {
		return nil, nil, s.unavailable(op, err)
	}
	return values, parseLayout(values), nil
}

func (s *Ledger) ensure(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	if err := s.client.EnsureWorksheet(ctx, StudioHeader); err != nil {
		return err
	}
	s.ready = true
	return nil
}

func (s *Ledger) unavailable(op string, err error) error {
	s.logger.Error("ledger operation failed", "operation", op, "error", err)
	return fmt.Errorf("%w: %s: %v", ledger.ErrUnavailable, op, err)
}

// AppendRow implements ledger.Ledger.
func (s *Ledger) AppendRow(ctx context.Context, project, description string, priority domain.Priority) error {
	values, l, err := s.load(ctx, "append")
	if err != nil {
		return err
	}

	var row []string
	if l.studio() {
		width := len(values[0])
		row = make([]string, width)
		fields := map[string]string{
			colProject:   project,
			colTask:      description,
			colStatus:    defaultStatus,
			colLink:      "",
			colPriority:  priority.Label(),
			colPriorityE: priority.Label(),
			colType:      "",
			colPlan:      defaultPlan,
		}
		for name, value := range fields {
			if c := l[name]; c > 0 {
				row[c-1] = value
			}
		}
	} else {
		row = []string{description, priority.Label(), s.now().UTC().Format(time.RFC3339)}
	}

	if err := s.client.AppendRow(ctx, row); err != nil {
		return s.unavailable("append", err)
	}
	s.logger.Info("ledger row appended",
		"priority", string(priority),
		"studio_layout", l.studio(),
		"description_length", len(description))
	return nil
}

// ListImportantRows implements ledger.Ledger.
func (s *Ledger) ListImportantRows(ctx context.Context) ([]ledger.Row, error) {
	values, l, err := s.load(ctx, "list_important")
	if err != nil {
		return nil, err
	}
	prio := l.priorityCol()
	if prio == 0 || len(values) < 2 {
		return nil, nil
	}

	var rows []ledger.Row
	for i, raw := range values[1:] {
		p, err := domain.ParsePriority(cell(raw, prio))
		if err != nil || !p.IsImportant() {
			continue
		}
		rows = append(rows, ledger.Row{
			Index:       i + 2,
			Project:     cell(raw, l[colProject]),
			Description: cell(raw, l.titleCol()),
			Priority:    p,
		})
	}
	return rows, nil
}

// UpdatePriority implements ledger.Ledger. Without a priority header the
// second column is used.
func (s *Ledger) UpdatePriority(ctx context.Context, rowIndex int, priority domain.Priority) error {
	if rowIndex < 2 {
		return fmt.Errorf("%w: %d", ledger.ErrRowNotFound, rowIndex)
	}
	_, l, err := s.load(ctx, "update_priority")
	if err != nil {
		return err
	}
	col := l.priorityCol()
	if col == 0 {
		col = 2
	}
	if err := s.client.UpdateCell(ctx, rowIndex, col, priority.Label()); err != nil {
		return s.unavailable("update_priority", err)
	}
	s.logger.Info("ledger priority updated", "row_index", rowIndex, "priority", string(priority))
	return nil
}

// DeleteRowByDescription implements ledger.Ledger.
func (s *Ledger) DeleteRowByDescription(ctx context.Context, text string) (int, bool, error) {
	values, l, err := s.load(ctx, "delete")
	if err != nil {
		return 0, false, err
	}
	title := l.titleCol()
	for i, raw := range values {
		if i == 0 {
			continue
		}
		if cell(raw, title) == strings.TrimSpace(text) {
			rowIndex := i + 1
			if err := s.client.DeleteRow(ctx, rowIndex); err != nil {
				return 0, false, s.unavailable("delete", err)
			}
			s.logger.Info("ledger row deleted", "row_index", rowIndex)
			return rowIndex, true, nil
		}
	}
	return 0, false, nil
}
