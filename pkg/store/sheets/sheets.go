// Package sheets implements the tabular store collaborator on top of the
// Google Sheets API: one worksheet per stream inside a single spreadsheet.
//
// Rate-limited rejections (HTTP 429) surface as sinkerrors rate_limit errors
// so the sink manager can absorb them; every other API failure is a store
// error and aborts the run.
package sheets

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsv4 "google.golang.org/api/sheets/v4"

	"github.com/datapipehq/sheetsink/pkg/sink"
	"github.com/datapipehq/sheetsink/pkg/sinkerrors"
)

// New worksheets are created with this grid; Sheets grows them as rows append.
const (
	worksheetDefaultRows = 100
	worksheetDefaultCols = 20
)

var spreadsheetURLPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)

// Store is a sink.TabularStore backed by one Google spreadsheet.
type Store struct {
	svc           *sheetsv4.Service
	spreadsheetID string
	logger        *zap.Logger
}

// worksheet is the sink.Table handle for one stream's worksheet.
type worksheet struct {
	title string
}

func (w *worksheet) Name() string { return w.title }

// New opens the spreadsheet behind spreadsheetURL with service-account
// credentials and verifies it is reachable.
func New(ctx context.Context, spreadsheetURL, credentialsPath string, log *zap.Logger) (*Store, error) {
	id, err := SpreadsheetID(spreadsheetURL)
	if err != nil {
		return nil, err
	}

	svc, err := sheetsv4.NewService(ctx,
		option.WithCredentialsFile(credentialsPath),
		option.WithScopes(sheetsv4.SpreadsheetsScope),
	)
	if err != nil {
		return nil, sinkerrors.Wrap(err, sinkerrors.ErrorTypeAuthentication,
			"failed to build sheets client from credentials").
			WithDetail("credentials_path", credentialsPath)
	}

	s := &Store{
		svc:           svc,
		spreadsheetID: id,
		logger:        log.With(zap.String("component", "sheets_store")),
	}

	if _, err := svc.Spreadsheets.Get(id).Fields("spreadsheetId").Context(ctx).Do(); err != nil {
		return nil, classify(err, "spreadsheet not reachable").
			WithDetail("spreadsheet_url", spreadsheetURL)
	}

	return s, nil
}

// SpreadsheetID extracts the document ID from a Sheets URL. A value with no
// path separators is taken to be a bare ID.
func SpreadsheetID(url string) (string, error) {
	if m := spreadsheetURLPattern.FindStringSubmatch(url); m != nil {
		return m[1], nil
	}
	if url != "" && !strings.ContainsAny(url, "/?#") {
		return url, nil
	}
	return "", sinkerrors.New(sinkerrors.ErrorTypeConfig, "cannot extract spreadsheet ID from URL").
		WithDetail("spreadsheet_url", url)
}

// SanitizeTitle maps a stream name onto a legal worksheet title. Colons are
// common in stream names (e.g. "schema:table") but unusable in titles.
func SanitizeTitle(stream string) string {
	return strings.ReplaceAll(stream, ":", "_")
}

// OpenTable returns the worksheet for a stream, creating it with a header
// row when it does not exist yet. Existing worksheets are returned unchanged.
func (s *Store) OpenTable(ctx context.Context, name string, header []string) (sink.Table, error) {
	title := SanitizeTitle(name)

	ss, err := s.svc.Spreadsheets.Get(s.spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).Do()
	if err != nil {
		return nil, classify(err, "failed to list worksheets")
	}

	for _, sheet := range ss.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == title {
			return &worksheet{title: title}, nil
		}
	}

	s.logger.Info("creating new worksheet", zap.String("title", title))
	req := &sheetsv4.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsv4.Request{{
			AddSheet: &sheetsv4.AddSheetRequest{
				Properties: &sheetsv4.SheetProperties{
					Title: title,
					GridProperties: &sheetsv4.GridProperties{
						RowCount:    worksheetDefaultRows,
						ColumnCount: worksheetDefaultCols,
					},
				},
			},
		}},
	}
	if _, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return nil, classify(err, "failed to create worksheet").WithDetail("title", title)
	}

	headerRow := make([]interface{}, len(header))
	for i, col := range header {
		headerRow[i] = col
	}
	if err := s.append(ctx, title, [][]interface{}{headerRow}); err != nil {
		return nil, sinkerrors.Wrap(err, sinkerrors.ErrorTypeStore, "failed to seed header row").
			WithDetail("title", title)
	}

	return &worksheet{title: title}, nil
}

// AppendRows bulk-appends rows to a stream's worksheet with RAW value input.
func (s *Store) AppendRows(ctx context.Context, table sink.Table, rows [][]interface{}) error {
	return s.append(ctx, table.Name(), rows)
}

func (s *Store) append(ctx context.Context, title string, rows [][]interface{}) error {
	vr := &sheetsv4.ValueRange{Values: rows}
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, rangeRef(title), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return classify(err, "append request rejected").WithDetail("worksheet", title)
	}
	return nil
}

// rangeRef builds a quoted A1 range reference for a worksheet title.
func rangeRef(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'!A1"
}

// classify maps a Sheets API error onto the sink error taxonomy. Only HTTP
// 429 is recoverable.
func classify(err error, msg string) *sinkerrors.Error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 429:
			return sinkerrors.Wrap(err, sinkerrors.ErrorTypeRateLimit, "sheets API quota reached")
		case 401, 403:
			return sinkerrors.Wrap(err, sinkerrors.ErrorTypeAuthentication, msg)
		}
	}
	return sinkerrors.Wrap(err, sinkerrors.ErrorTypeStore, msg)
}
