// Package sheets appends rows to a Google Sheets range.
package sheets

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

type Appender struct {
	svc           *gsheets.Service
	spreadsheetID string
	rangeA1       string
}

// New builds an Appender from a service account file, or application default
// credentials when credentialsFile is empty. Extra options are applied last.
func New(ctx context.Context, spreadsheetID, rangeA1, credentialsFile string, opts ...option.ClientOption) (*Appender, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("sheets: spreadsheet id is required")
	}
	var base []option.ClientOption
	if len(opts) == 0 {
		creds, err := loadCredentials(ctx, credentialsFile)
		if err != nil {
			return nil, err
		}
		base = append(base, option.WithCredentials(creds))
	}
	svc, err := gsheets.NewService(ctx, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("sheets: new service: %w", err)
	}
	return &Appender{svc: svc, spreadsheetID: spreadsheetID, rangeA1: rangeA1}, nil
}

func loadCredentials(ctx context.Context, file string) (*google.Credentials, error) {
	if file == "" {
		creds, err := google.FindDefaultCredentials(ctx, gsheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("sheets: default credentials: %w", err)
		}
		return creds, nil
	}
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("sheets: read credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, b, gsheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("sheets: parse credentials: %w", err)
	}
	return creds, nil
}

// AppendRow adds row after the last non-empty row of the configured range.
func (a *Appender) AppendRow(ctx context.Context, row []string) error {
	values := make([]interface{}, 0, len(row))
	for _, v := range row {
		values = append(values, v)
	}
	_, err := a.svc.Spreadsheets.Values.
		Append(a.spreadsheetID, a.rangeA1, &gsheets.ValueRange{Values: [][]interface{}{values}}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets: append: %w", err)
	}
	return nil
}
