package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"dogsitter/internal/config"
	"dogsitter/internal/logging"
	"dogsitter/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// ErrRowNotFound is returned when the ledger has no row for a booking.
var ErrRowNotFound = errors.New("booking row not found")

const (
	lastColumn      = "L"
	statusColumn    = "J"
	updatedColumn   = "L"
	timestampLayout = "2006-01-02 15:04:05"
)

var ledgerHeader = []interface{}{
	"ID", "Owner ID", "Sitter ID", "Start", "End", "Days", "Animals", "Services", "Total", "Status", "Created At", "Updated At",
}

var updatedRowRe = regexp.MustCompile(`![A-Z]+(\d+)`)

// BookingLedger mirrors bookings into one sheet of a spreadsheet, one row
// per booking keyed by the ID in column A.
type BookingLedger struct {
	service       *sheets.Service
	spreadsheetID string
	sheet         string
	logger        *zerolog.Logger

	cacheMu  sync.RWMutex
	rowCache map[int64]int
}

// NewBookingLedger authenticates with a service account key file.
func NewBookingLedger(ctx context.Context, cfg config.GoogleConfig, logger *zerolog.Logger) (*BookingLedger, error) {
	credentialsJSON, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}
	jwtConfig, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(jwtConfig.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}
	return NewBookingLedgerWithService(srv, cfg.BookingsSpreadsheetID, cfg.BookingsSheet, logger), nil
}

func NewBookingLedgerWithService(srv *sheets.Service, spreadsheetID, sheet string, logger *zerolog.Logger) *BookingLedger {
	if sheet == "" {
		sheet = "Bookings"
	}
	return &BookingLedger{
		service:       srv,
		spreadsheetID: spreadsheetID,
		sheet:         sheet,
		logger:        logging.Component(logger, "sheets"),
		rowCache:      make(map[int64]int),
	}
}

func (l *BookingLedger) rangeOf(a1 string) string {
	return l.sheet + "!" + a1
}

func (l *BookingLedger) rowRange(row int) string {
	return l.rangeOf(fmt.Sprintf("A%d:%s%d", row, lastColumn, row))
}

// TestConnection reads the header cell.
func (l *BookingLedger) TestConnection(ctx context.Context) error {
	_, err := l.service.Spreadsheets.Values.Get(l.spreadsheetID, l.rangeOf("A1")).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// EnsureHeader writes the column titles into row 1.
func (l *BookingLedger) EnsureHeader(ctx context.Context) error {
	_, err := l.service.Spreadsheets.Values.Update(l.spreadsheetID, l.rowRange(1), &sheets.ValueRange{
		Values: [][]interface{}{ledgerHeader},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return nil
}

// WarmUpCache rebuilds the row index from the ID column.
func (l *BookingLedger) WarmUpCache(ctx context.Context) error {
	resp, err := l.service.Spreadsheets.Values.Get(l.spreadsheetID, l.rangeOf("A:A")).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to read id column: %w", err)
	}

	cache := make(map[int64]int, len(resp.Values))
	for i, row := range resp.Values {
		if id := cellID(row); id > 0 {
			cache[id] = i + 1
		}
	}

	l.cacheMu.Lock()
	l.rowCache = cache
	l.cacheMu.Unlock()
	return nil
}

// StartCacheRefresh warms the cache now and then every interval until ctx
// is done.
func (l *BookingLedger) StartCacheRefresh(ctx context.Context, interval time.Duration) {
	refresh := func() {
		rctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := l.WarmUpCache(rctx); err != nil {
			l.logger.Warn().Err(err).Msg("row cache refresh failed")
		}
	}

	refresh()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}

// AppendBooking adds a row for the booking and caches its position.
func (l *BookingLedger) AppendBooking(ctx context.Context, b *models.Booking) error {
	resp, err := l.service.Spreadsheets.Values.Append(l.spreadsheetID, l.rangeOf("A:A"), &sheets.ValueRange{
		Values: [][]interface{}{bookingRowValues(b)},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to append booking %d: %w", b.ID, err)
	}
	if resp.Updates != nil {
		if row := parseUpdatedRow(resp.Updates.UpdatedRange); row > 0 {
			l.setCachedRow(b.ID, row)
		}
	}
	return nil
}

// UpsertBooking rewrites the booking row or appends one.
func (l *BookingLedger) UpsertBooking(ctx context.Context, b *models.Booking) error {
	if b == nil {
		return errors.New("booking is nil")
	}

	row, err := l.FindBookingRow(ctx, b.ID)
	if errors.Is(err, ErrRowNotFound) {
		return l.AppendBooking(ctx, b)
	}
	if err != nil {
		return err
	}

	_, err = l.service.Spreadsheets.Values.Update(l.spreadsheetID, l.rowRange(row), &sheets.ValueRange{
		Values: [][]interface{}{bookingRowValues(b)},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update booking %d: %w", b.ID, err)
	}
	return nil
}

// UpdateBookingStatus rewrites the status and updated-at cells.
func (l *BookingLedger) UpdateBookingStatus(ctx context.Context, bookingID int64, status string) error {
	row, err := l.FindBookingRow(ctx, bookingID)
	if err != nil {
		return err
	}

	_, err = l.service.Spreadsheets.Values.BatchUpdate(l.spreadsheetID, &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data: []*sheets.ValueRange{
			{Range: l.rangeOf(fmt.Sprintf("%s%d", statusColumn, row)), Values: [][]interface{}{{status}}},
			{Range: l.rangeOf(fmt.Sprintf("%s%d", updatedColumn, row)), Values: [][]interface{}{{time.Now().Format(timestampLayout)}}},
		},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update status of booking %d: %w", bookingID, err)
	}
	return nil
}

// DeleteBookingRow clears the booking row. A missing row is not an error.
func (l *BookingLedger) DeleteBookingRow(ctx context.Context, bookingID int64) error {
	row, err := l.FindBookingRow(ctx, bookingID)
	if errors.Is(err, ErrRowNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = l.service.Spreadsheets.Values.Clear(l.spreadsheetID, l.rowRange(row), &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to clear booking %d: %w", bookingID, err)
	}
	l.deleteCachedRow(bookingID)
	return nil
}

// FindBookingRow returns the 1-based row of bookingID, scanning column A on
// a cache miss.
func (l *BookingLedger) FindBookingRow(ctx context.Context, bookingID int64) (int, error) {
	if bookingID == 0 {
		return 0, errors.New("booking id is required")
	}
	if row, ok := l.getCachedRow(bookingID); ok {
		return row, nil
	}

	resp, err := l.service.Spreadsheets.Values.Get(l.spreadsheetID, l.rangeOf("A:A")).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("failed to read id column: %w", err)
	}
	for i, row := range resp.Values {
		if cellID(row) == bookingID {
			l.setCachedRow(bookingID, i+1)
			return i + 1, nil
		}
	}
	return 0, ErrRowNotFound
}

// ClearCache drops the row index.
func (l *BookingLedger) ClearCache() {
	l.cacheMu.Lock()
	defer l.cacheMu.Unlock()
	l.rowCache = make(map[int64]int)
}

func (l *BookingLedger) getCachedRow(id int64) (int, bool) {
	l.cacheMu.RLock()
	defer l.cacheMu.RUnlock()
	row, ok := l.rowCache[id]
	return row, ok
}

func (l *BookingLedger) setCachedRow(id int64, row int) {
	l.cacheMu.Lock()
	defer l.cacheMu.Unlock()
	l.rowCache[id] = row
}

func (l *BookingLedger) deleteCachedRow(id int64) {
	l.cacheMu.Lock()
	defer l.cacheMu.Unlock()
	delete(l.rowCache, id)
}

func cellID(row []interface{}) int64 {
	if len(row) == 0 {
		return 0
	}
	switch v := row[0].(type) {
	case float64:
		return int64(v)
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0
		}
		return id
	}
	return 0
}

// parseUpdatedRow extracts the first row number from a range like
// "Bookings!A10:L10".
func parseUpdatedRow(updatedRange string) int {
	m := updatedRowRe.FindStringSubmatch(updatedRange)
	if len(m) != 2 {
		return 0
	}
	row, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return row
}

func bookingRowValues(b *models.Booking) []interface{} {
	animals := make([]string, 0, len(b.Animals))
	for _, a := range b.Animals {
		animals = append(animals, fmt.Sprintf("%s (%s, %s)", a.Name, a.Type, a.Size))
	}
	services := make([]string, 0, len(b.Services))
	for _, s := range b.Services {
		services = append(services, s.Name)
	}
	return []interface{}{
		b.ID,
		b.UserID,
		b.DogSitterID,
		b.StartDate.String(),
		b.EndDate.String(),
		b.Days(),
		strings.Join(animals, ", "),
		strings.Join(services, ", "),
		b.TotalPrice.String(),
		b.Status,
		b.CreatedAt.Format(timestampLayout),
		b.UpdatedAt.Format(timestampLayout),
	}
}
