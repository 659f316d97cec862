package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pharmadesk/pharmadesk/internal/shared"
)

// Collections exported in a backup, in document order.
var Collections = []string{"products", "sales", "customers", "suppliers", "debts", "users"}

// Document is a backup keyed by collection name. Every entry carries its id.
type Document map[string][]map[string]any

// RestoreProduct is one products entry accepted by Restore.
type RestoreProduct struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Barcode          string  `json:"barcode"`
	Price            int64   `json:"price"`
	PurchasePrice    int64   `json:"purchase_price"`
	Quantity         int     `json:"quantity"`
	UnitType         string  `json:"unit_type"`
	ActiveIngredient string  `json:"active_ingredient"`
	ExpiryDate       *string `json:"expiry_date"`
	SupplierID       string  `json:"supplier_id"`
}

// BackupRepository reads raw collections and restores products.
type BackupRepository interface {
	Dump(ctx context.Context, collection string) ([]map[string]any, error)
	DatabaseSize(ctx context.Context) (int64, error)
	RestoreProducts(ctx context.Context, products []RestoreProduct) error
}

// RestoreResult reports what a restore applied.
type RestoreResult struct {
	Products int      `json:"products"`
	Ignored  []string `json:"ignored"`
}

// BackupService exports and restores data.
type BackupService struct {
	repo     BackupRepository
	settings *Service
	logger   *slog.Logger
	now      func() time.Time
}

// NewBackupService wires the backup service.
func NewBackupService(repo BackupRepository, settings *Service, logger *slog.Logger) *BackupService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BackupService{repo: repo, settings: settings, logger: logger, now: time.Now}
}

// Filename is the download name for a backup taken at t.
func Filename(t time.Time) string {
	return fmt.Sprintf("pharmacy_backup_%s.json", t.Format("2006-01-02"))
}

// Export loads every collection concurrently and records the backup date and database size.
func (s *BackupService) Export(ctx context.Context) (string, Document, error) {
	doc := make(Document, len(Collections))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range Collections {
		name := name
		g.Go(func() error {
			rows, err := s.repo.Dump(gctx, name)
			if err != nil {
				return fmt.Errorf("dump %s: %w", name, err)
			}
			if rows == nil {
				rows = []map[string]any{}
			}
			mu.Lock()
			doc[name] = rows
			mu.Unlock()
			return nil
		})
	}
	var size int64
	g.Go(func() error {
		var err error
		size, err = s.repo.DatabaseSize(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", nil, err
	}

	now := s.now().UTC()
	if _, err := s.settings.Get(ctx); err != nil {
		return "", nil, err
	}
	if err := s.settings.repo.SaveBackupInfo(ctx, BackupInfo{LastBackupDate: &now, DatabaseSize: size}); err != nil {
		return "", nil, fmt.Errorf("record backup: %w", err)
	}
	s.settings.record(ctx, "settings.backup", map[string]any{"database_size": size})
	s.logger.Info("backup exported", slog.Int64("database_size", size))
	return Filename(now), doc, nil
}

// Restore upserts the products collection in one transaction. Other collections are reported as ignored.
func (s *BackupService) Restore(ctx context.Context, doc map[string]json.RawMessage) (RestoreResult, error) {
	result := RestoreResult{Ignored: []string{}}
	for name := range doc {
		if name != "products" {
			result.Ignored = append(result.Ignored, name)
		}
	}
	sort.Strings(result.Ignored)

	raw, ok := doc["products"]
	if !ok {
		return result, fmt.Errorf("%w: backup has no products collection", shared.ErrInvalidInput)
	}
	var products []RestoreProduct
	if err := json.Unmarshal(raw, &products); err != nil {
		return result, fmt.Errorf("%w: products: %v", shared.ErrInvalidInput, err)
	}
	for i, p := range products {
		if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.Name) == "" {
			return result, fmt.Errorf("%w: product %d needs id and name", shared.ErrInvalidInput, i)
		}
		if p.Price < 0 || p.PurchasePrice < 0 || p.Quantity < 0 {
			return result, fmt.Errorf("%w: product %s has negative values", shared.ErrInvalidInput, p.ID)
		}
		if p.ExpiryDate != nil {
			if _, err := ParseBackupDate(*p.ExpiryDate); err != nil {
				return result, err
			}
		}
	}
	if err := s.repo.RestoreProducts(ctx, products); err != nil {
		return result, fmt.Errorf("restore products: %w", err)
	}
	result.Products = len(products)
	s.settings.record(ctx, "settings.restore", map[string]any{"products": result.Products, "ignored": result.Ignored})
	s.logger.Info("backup restored", slog.Int("products", result.Products), slog.Any("ignored", result.Ignored))
	return result, nil
}

// ParseBackupDate accepts a plain date or an RFC 3339 timestamp.
func ParseBackupDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339Nano} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: %q is not a date", shared.ErrInvalidInput, raw)
}
