package sheets

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"campsite/utils"
)

// GoogleSource fetches rows from a Google spreadsheet, keeping the last pull
// in the cache so repeated ingestion calls do not hammer the API.
type GoogleSource struct {
	service       *gsheets.Service
	spreadsheetID string
	readRange     string
	groupType     string
	cache         *Cache
}

// NewGoogleSource builds the sheets service from a service account
// credentials file. cache may be nil, in which case every call fetches.
func NewGoogleSource(ctx context.Context, serviceAccountFile, spreadsheetID, readRange, groupType string, cache *Cache) (*GoogleSource, error) {
	service, err := gsheets.NewService(ctx,
		option.WithCredentialsFile(serviceAccountFile),
		option.WithScopes(gsheets.SpreadsheetsReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("NewGoogleSource: build sheets service: %w", err)
	}
	return &GoogleSource{
		service:       service,
		spreadsheetID: spreadsheetID,
		readRange:     readRange,
		groupType:     groupType,
		cache:         cache,
	}, nil
}

// Rows returns the current sheet rows, from the cache unless pullNew is set
// or the cache is cold.
func (s *GoogleSource) Rows(ctx context.Context, pullNew bool) (*Result, error) {
	logger := utils.GetLogger()

	if !pullNew && s.cache != nil {
		if cached, err := s.cache.Get(ctx); err == nil && cached != nil {
			logger.Debug("Sheet rows served from cache")
			return cached, nil
		}
	}

	rows, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Updated: utils.NowLocal(),
		Sheets: []Sheet{{
			Name:      s.readRange,
			GroupType: s.groupType,
			Rows:      rows,
		}},
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, result); err != nil {
			logger.Warn("Failed to cache sheet rows", zap.Error(err))
		}
	}
	return result, nil
}

// fetch pulls the raw values and zips the header row with each data row,
// normalizing the column keys.
func (s *GoogleSource) fetch(ctx context.Context) ([]Row, error) {
	resp, err := s.service.Spreadsheets.Values.
		Get(s.spreadsheetID, s.readRange).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("Rows: fetch %s %s: %w", s.spreadsheetID, s.readRange, err)
	}

	if len(resp.Values) < 2 {
		return nil, nil
	}

	header := make([]string, len(resp.Values[0]))
	for i, cell := range resp.Values[0] {
		header[i] = NormalizeKey(fmt.Sprint(cell))
	}

	rows := make([]Row, 0, len(resp.Values)-1)
	for _, raw := range resp.Values[1:] {
		row := Row{}
		for i, cell := range raw {
			if i < len(header) {
				row[header[i]] = fmt.Sprint(cell)
			}
		}
		rows = append(rows, row)
	}

	utils.GetLogger().Info("Fetched sheet rows",
		zap.String("range", s.readRange), zap.Int("rows", len(rows)))
	return rows, nil
}

var _ Source = (*GoogleSource)(nil)

// Age renders how long ago a pull happened, for the listing header.
func Age(updated time.Time) string {
	if updated.IsZero() {
		return "NEVER"
	}
	return utils.SecsToHuman(int64(time.Since(updated).Seconds()))
}
