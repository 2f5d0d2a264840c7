package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/alanyoungcy/stocksim/internal/domain"
)

// ExportService writes account statements (the full transaction history as
// CSV) to object storage.
type ExportService struct {
	ledger domain.Ledger
	blob   domain.BlobWriter
	logger *slog.Logger
}

// NewExportService creates an ExportService.
func NewExportService(ledger domain.Ledger, blob domain.BlobWriter, logger *slog.Logger) *ExportService {
	return &ExportService{
		ledger: ledger,
		blob:   blob,
		logger: logger.With(slog.String("component", "export_service")),
	}
}

// ExportTransactions uploads the account's transaction log as a CSV
// statement and returns the object key.
func (s *ExportService) ExportTransactions(ctx context.Context, accountID string) (string, error) {
	if _, err := s.ledger.GetAccount(ctx, accountID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrAccountNotFound
		}
		s.logger.ErrorContext(ctx, "load account failed", slog.String("error", err.Error()))
		return "", domain.ErrStoreUnavailable
	}

	txns, err := s.ledger.ListTransactions(ctx, accountID, domain.ListOpts{})
	if err != nil {
		s.logger.ErrorContext(ctx, "list transactions failed", slog.String("error", err.Error()))
		return "", domain.ErrStoreUnavailable
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"id", "ticker", "side", "quantity", "price", "executed_at"})
	for _, t := range txns {
		_ = w.Write([]string{
			t.ID,
			t.Ticker,
			string(t.Side),
			strconv.FormatInt(t.Quantity, 10),
			t.Price.String(),
			t.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("export_service: write csv: %w", err)
	}

	key := fmt.Sprintf("statements/%s/%s.csv", accountID, time.Now().UTC().Format("20060102T150405Z"))
	if err := s.blob.Put(ctx, key, bytes.NewReader(buf.Bytes()), "text/csv"); err != nil {
		s.logger.ErrorContext(ctx, "statement upload failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return "", domain.ErrStoreUnavailable
	}

	s.logger.InfoContext(ctx, "statement exported",
		slog.String("account", accountID),
		slog.String("key", key),
		slog.Int("transactions", len(txns)),
	)
	return key, nil
}
