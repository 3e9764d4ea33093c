package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// valuesClient is the worksheet I/O the ledger needs. It is satisfied by
// apiClient in production and by an in-memory grid in tests.
type valuesClient interface {
	// Values returns every populated row of the worksheet, header first.
	Values(ctx context.Context) ([][]string, error)
	// AppendRow writes row after the last populated row.
	AppendRow(ctx context.Context, row []string) error
	// UpdateCell writes value at the 1-based (row, col) cell.
	UpdateCell(ctx context.Context, row, col int, value string) error
	// DeleteRow removes the 1-based row, shifting later rows up.
	DeleteRow(ctx context.Context, row int) error
	// EnsureWorksheet creates the worksheet with header when it does not exist.
	EnsureWorksheet(ctx context.Context, header []string) error
}

// apiClient implements valuesClient on the Sheets v4 REST API.
type apiClient struct {
	svc           *gsheets.Service
	spreadsheetID string
	worksheet     string

	mu      sync.Mutex
	sheetID *int64
}

// newAPIClient authenticates with a service account. credentials is a path to
// the JSON key file or the JSON document itself.
func newAPIClient(ctx context.Context, spreadsheetID, worksheet, credentials string) (*apiClient, error) {
	opts := []option.ClientOption{option.WithScopes(gsheets.SpreadsheetsScope)}
	if info, err := os.Stat(credentials); err == nil && !info.IsDir() {
		opts = append(opts, option.WithCredentialsFile(credentials))
	} else if strings.HasPrefix(strings.TrimSpace(credentials), "{") {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentials)))
	} else {
		return nil, fmt.Errorf("ledger credentials are neither a readable file nor inline JSON")
	}

	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &apiClient{svc: svc, spreadsheetID: spreadsheetID, worksheet: worksheet}, nil
}

func (c *apiClient) rangeA1(suffix string) string {
	title := "'" + strings.ReplaceAll(c.worksheet, "'", "''") + "'"
	if suffix == "" {
		return title
	}
	return title + "!" + suffix
}

func (c *apiClient) Values(ctx context.Context) ([][]string, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.rangeA1("")).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	out := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprint(v)
		}
		out[i] = cells
	}
	return out, nil
}

func (c *apiClient) AppendRow(ctx context.Context, row []string) error {
	values := make([]interface{}, len(row))
	for i, v := range row {
		values[i] = v
	}
	_, err := c.svc.Spreadsheets.Values.
		Append(c.spreadsheetID, c.rangeA1("A1"), &gsheets.ValueRange{Values: [][]interface{}{values}}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

func (c *apiClient) UpdateCell(ctx context.Context, row, col int, value string) error {
	cell := c.rangeA1(fmt.Sprintf("%s%d", columnName(col), row))
	_, err := c.svc.Spreadsheets.Values.
		Update(c.spreadsheetID, cell, &gsheets.ValueRange{Values: [][]interface{}{{value}}}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	return err
}

func (c *apiClient) DeleteRow(ctx context.Context, row int) error {
	id, err := c.lookupSheetID(ctx)
	if err != nil {
		return err
	}
	req := &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			DeleteDimension: &gsheets.DeleteDimensionRequest{
				Range: &gsheets.DimensionRange{
					SheetId:    id,
					Dimension:  "ROWS",
					StartIndex: int64(row - 1),
					EndIndex:   int64(row),
				},
			},
		}},
	}
	_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
	return err
}

func (c *apiClient) EnsureWorksheet(ctx context.Context, header []string) error {
	if _, err := c.lookupSheetID(ctx); err == nil {
		return nil
	} else if !errors.Is(err, errWorksheetMissing) {
		return err
	}

	req := &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			AddSheet: &gsheets.AddSheetRequest{
				Properties: &gsheets.SheetProperties{
					Title:          c.worksheet,
					GridProperties: &gsheets.GridProperties{RowCount: 1000, ColumnCount: 10},
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to add worksheet %q: %w", c.worksheet, err)
	}
	return c.AppendRow(ctx, header)
}

var errWorksheetMissing = errors.New("worksheet not found")

func (c *apiClient) lookupSheetID(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sheetID != nil {
		return *c.sheetID, nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == c.worksheet {
			id := sh.Properties.SheetId
			c.sheetID = &id
			return id, nil
		}
	}
	return 0, errWorksheetMissing
}

// columnName converts a 1-based column number to its A1 letters.
func columnName(col int) string {
	name := ""
	for col > 0 {
		col--
		name = string(rune('A'+col%26)) + name
		col /= 26
	}
	return name
}
