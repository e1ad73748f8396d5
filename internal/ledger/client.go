package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/atlasformation/funnel-engine/internal/config"
	"github.com/atlasformation/funnel-engine/internal/models"
)

// RowSource produces the raw ledger rows: one map per spreadsheet row,
// keyed by header name. The spreadsheet itself is an external
// collaborator; this package only consumes its rows.
type RowSource interface {
	FetchRows(ctx context.Context) ([]map[string]string, error)
}

// HTTPRowSource fetches rows from the spreadsheet proxy endpoint as a
// JSON array of objects. The client carries a bounded timeout so a stuck
// upstream cannot block a request forever.
type HTTPRowSource struct {
	url        string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPRowSource builds a row source from ledger configuration.
func NewHTTPRowSource(cfg config.LedgerConfig, logger *zap.Logger) *HTTPRowSource {
	return &HTTPRowSource{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// FetchRows retrieves and decodes the full row set. Any transport or
// decode failure is an UpstreamError covering the whole call; no partial
// ledger is returned.
func (c *HTTPRowSource) FetchRows(ctx context.Context) ([]map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, &models.UpstreamError{Op: "request", Err: err}
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &models.UpstreamError{Op: "fetch", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &models.UpstreamError{Op: "fetch", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var raw []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &models.UpstreamError{Op: "decode", Err: err}
	}

	rows := make([]map[string]string, 0, len(raw))
	for _, r := range raw {
		row := make(map[string]string, len(r))
		for k, v := range r {
			row[k] = stringify(v)
		}
		rows = append(rows, row)
	}

	c.logger.Debug("fetched ledger rows", zap.Int("count", len(rows)))
	return rows, nil
}

// stringify renders a loosely typed sheet cell as text. Numbers arrive as
// float64 from the JSON decoder; integral values must not grow a ".0".
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case bool:
		return fmt.Sprintf("%t", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
