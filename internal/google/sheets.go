package google

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	SpreadsheetMimeType = "application/vnd.google-apps.spreadsheet"
	HeaderRange         = "A1:F1"
	AppendRange         = "A2"
	valueInputRaw       = "RAW"
	insertRows          = "INSERT_ROWS"
)

// SheetsClient is the spreadsheet capability used by provisioning and delivery.
// Every call authenticates with the token source it is given.
type SheetsClient interface {
	// CreateSpreadsheet creates a new spreadsheet owned by the app and returns its id.
	CreateSpreadsheet(ctx context.Context, ts oauth2.TokenSource, title string) (string, error)
	// WriteRow overwrites rng with a single row.
	WriteRow(ctx context.Context, ts oauth2.TokenSource, spreadsheetID, rng string, row []any) error
	// AppendRow appends a single row after the table found at rng.
	AppendRow(ctx context.Context, ts oauth2.TokenSource, spreadsheetID, rng string, row []any) error
}

// Sheets implements SheetsClient with the Drive v3 and Sheets v4 APIs.
type Sheets struct {
	timeout time.Duration
	breaker *Breaker
	extra   []option.ClientOption
}

var _ SheetsClient = (*Sheets)(nil)

// NewSheets builds the client. extra options are appended to every service
// (tests point them at an httptest server).
func NewSheets(timeout time.Duration, breaker *Breaker, extra ...option.ClientOption) *Sheets {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Sheets{timeout: timeout, breaker: breaker, extra: extra}
}

func (s *Sheets) options(ts oauth2.TokenSource) []option.ClientOption {
	return append([]option.ClientOption{option.WithTokenSource(ts)}, s.extra...)
}

func (s *Sheets) CreateSpreadsheet(ctx context.Context, ts oauth2.TokenSource, title string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var id string
	err := s.breaker.Do(func() error {
		svc, err := drive.NewService(ctx, s.options(ts)...)
		if err != nil {
			return fmt.Errorf("drive service: %w", err)
		}
		f, err := svc.Files.Create(&drive.File{Name: title, MimeType: SpreadsheetMimeType}).
			Fields("id").
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("create spreadsheet: %w", err)
		}
		id = f.Id
		return nil
	})
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("create spreadsheet: empty file id")
	}
	return id, nil
}

func (s *Sheets) WriteRow(ctx context.Context, ts oauth2.TokenSource, spreadsheetID, rng string, row []any) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.breaker.Do(func() error {
		svc, err := sheets.NewService(ctx, s.options(ts)...)
		if err != nil {
			return fmt.Errorf("sheets service: %w", err)
		}
		_, err = svc.Spreadsheets.Values.Update(spreadsheetID, rng, &sheets.ValueRange{Values: [][]any{row}}).
			ValueInputOption(valueInputRaw).
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("write %s: %w", rng, err)
		}
		return nil
	})
}

func (s *Sheets) AppendRow(ctx context.Context, ts oauth2.TokenSource, spreadsheetID, rng string, row []any) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.breaker.Do(func() error {
		svc, err := sheets.NewService(ctx, s.options(ts)...)
		if err != nil {
			return fmt.Errorf("sheets service: %w", err)
		}
		_, err = svc.Spreadsheets.Values.Append(spreadsheetID, rng, &sheets.ValueRange{Values: [][]any{row}}).
			ValueInputOption(valueInputRaw).
			InsertDataOption(insertRows).
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("append row: %w", err)
		}
		return nil
	})
}
