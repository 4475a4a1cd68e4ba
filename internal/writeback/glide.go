// Package writeback stores generated sections against the RFQ row they were
// produced for.
package writeback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/config"
	"github.com/aniketsandhanwootz-wq/RFQ-Summary/internal/models"
)

// Writer upserts column values for the row identified by key.
type Writer interface {
	Upsert(ctx context.Context, key string, columns map[string]string) error
}

// Nop accepts every write and stores nothing.
type Nop struct{}

func (Nop) Upsert(context.Context, string, map[string]string) error { return nil }

// maxQueryPages bounds the row scan of the responses table.
const maxQueryPages = 20

// Glide writes to a Glide table through the mutateTables API, keyed by the
// RFQ id column.
type Glide struct {
	cfg    config.Glide
	client *http.Client
	logger *slog.Logger
}

func NewGlide(cfg config.Glide, client *http.Client, logger *slog.Logger) (*Glide, error) {
	if cfg.APIKey == "" || cfg.AppID == "" || cfg.ResponsesTable == "" {
		return nil, fmt.Errorf("%w: GLIDE_API_KEY, GLIDE_APP_ID and GLIDE_ZAI_RESPONSES_TABLE must be set", models.ErrAuth)
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Glide{cfg: cfg, client: client, logger: logger}, nil
}

type mutation struct {
	Kind         string            `json:"kind"`
	TableName    string            `json:"tableName"`
	RowID        string            `json:"rowID,omitempty"`
	ColumnValues map[string]string `json:"columnValues"`
}

type query struct {
	TableName string `json:"tableName"`
	UTC       bool   `json:"utc"`
	StartAt   string `json:"startAt,omitempty"`
}

type queryResult struct {
	Rows []map[string]any `json:"rows"`
	Next string           `json:"next"`
}

func (g *Glide) Upsert(ctx context.Context, key string, columns map[string]string) error {
	logCtx := g.logger.With("rowId", key, "table", g.cfg.ResponsesTable)

	rowID, err := g.findRow(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to look up glide row for %s: %w", key, err)
	}

	m := mutation{TableName: g.cfg.ResponsesTable, ColumnValues: columns}
	if rowID != "" {
		m.Kind, m.RowID = "set-columns-in-row", rowID
	} else {
		m.Kind = "add-row-to-table"
		values := make(map[string]string, len(columns)+1)
		for k, v := range columns {
			values[k] = v
		}
		values[g.cfg.ColRFQID] = key
		m.ColumnValues = values
	}

	payload := map[string]any{"appID": g.cfg.AppID, "mutations": []mutation{m}}
	if err := g.call(ctx, "mutateTables", payload, nil); err != nil {
		return fmt.Errorf("failed to write glide row for %s: %w", key, err)
	}
	logCtx.Info("Wrote back to Glide.", "mutation", m.Kind, "columns", len(columns))
	return nil
}

func (g *Glide) findRow(ctx context.Context, key string) (string, error) {
	q := query{TableName: g.cfg.ResponsesTable, UTC: true}
	for page := 0; page < maxQueryPages; page++ {
		var results []queryResult
		payload := map[string]any{"appID": g.cfg.AppID, "queries": []query{q}}
		if err := g.call(ctx, "queryTables", payload, &results); err != nil {
			return "", err
		}
		if len(results) == 0 {
			return "", nil
		}
		for _, row := range results[0].Rows {
			if fmt.Sprint(row[g.cfg.ColRFQID]) == key {
				id, _ := row["$rowID"].(string)
				return id, nil
			}
		}
		if results[0].Next == "" {
			return "", nil
		}
		q.StartAt = results[0].Next
	}
	g.logger.Warn("Stopped scanning Glide table before reaching the end.", "pages", maxQueryPages)
	return "", nil
}

func (g *Glide) call(ctx context.Context, fn string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := strings.TrimRight(g.cfg.BaseURL, "/") + "/" + fn
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("glide %s returned %d: %s", fn, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode glide %s response: %w", fn, err)
	}
	return nil
}
