// Package sheets appends rows to a Google Sheets tab.
package sheets

import (
	"context"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/bassamadnan/mailsheet/retry"
)

const valueInputOption = "RAW"

// Client appends rows through the Sheets API.
type Client struct {
	srv *sheets.Service
}

// NewClient builds the gateway from opts, normally the authorized HTTP client.
func NewClient(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, retry.Provider("sheets: create service", err)
	}
	return &Client{srv: srv}, nil
}

// AppendRow writes row after the last filled row of columns A to D in sheetName.
func (c *Client) AppendRow(ctx context.Context, spreadsheetID, sheetName string, row []string) error {
	values := make([]interface{}, len(row))
	for i, v := range row {
		values[i] = v
	}
	vr := &sheets.ValueRange{Values: [][]interface{}{values}}

	_, err := c.srv.Spreadsheets.Values.Append(spreadsheetID, appendRange(sheetName), vr).
		ValueInputOption(valueInputOption).
		Context(ctx).
		Do()
	if err != nil {
		return retry.Provider("sheets: append row", err)
	}
	return nil
}

// appendRange quotes the tab name so names with spaces or quotes resolve.
func appendRange(sheetName string) string {
	return "'" + strings.ReplaceAll(sheetName, "'", "''") + "'!A:D"
}
