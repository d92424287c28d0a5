// Package services contains application services for the daybook client.
// This file defines the transfer service: whole-dataset export to a bundle
// and full-overwrite restore from one.
package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/bundle"
	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/logging"
)

// Store is the part of the local store the transfer service needs.
type Store interface {
	bundle.Source
	ReplaceAll(ctx context.Context, data map[string][]models.Record) error
	ReplaceSettings(ctx context.Context, settings map[string]any) error
}

// ChangeNotifier is told when an import rewrote local data.
type ChangeNotifier interface {
	NotifyLocalChange()
}

// TransferService defines export/import operations.
//
// Contract:
//   - ExportAll: serialize settings and every collection; encrypt when a
//     password is given.
//   - ImportAll: decode a bundle and replace every declared collection and
//     all settings with its contents. Collections missing from the bundle
//     end up empty.
type TransferService interface {
	ExportAll(ctx context.Context, password []byte) ([]byte, error)
	ImportAll(ctx context.Context, data []byte, password []byte) (*ImportSummary, error)
}

// ImportSummary reports what a restore wrote.
type ImportSummary struct {
	Records    map[string]int
	Settings   int
	ExportDate time.Time
	Skipped    []string
}

type transferService struct {
	store    Store
	notifier ChangeNotifier
	log      logging.Logger
	now      func() time.Time
}

// NewTransferService builds a TransferService. notifier may be nil.
func NewTransferService(store Store, notifier ChangeNotifier, log logging.Logger) TransferService {
	if log == nil {
		log = logging.Nop()
	}
	return &transferService{store: store, notifier: notifier, log: log, now: time.Now}
}

func (s *transferService) ExportAll(ctx context.Context, password []byte) ([]byte, error) {
	b, err := bundle.Snapshot(ctx, s.store, s.now())
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	data, err := bundle.Encode(b, password)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	s.log.Info(ctx, "exported dataset", "records", b.Count(), "encrypted", len(password) > 0)
	return data, nil
}

func (s *transferService) ImportAll(ctx context.Context, data []byte, password []byte) (*ImportSummary, error) {
	b, err := bundle.Decode(data, password)
	if err != nil {
		return nil, err
	}

	summary := &ImportSummary{
		Records:    map[string]int{},
		Settings:   len(b.Settings),
		ExportDate: b.ExportDate,
	}
	replace := make(map[string][]models.Record, len(s.store.Collections()))
	for _, c := range s.store.Collections() {
		recs := b.Data[c.Name]
		if recs == nil {
			recs = []models.Record{}
		}
		replace[c.Name] = recs
		summary.Records[c.Name] = len(recs)
	}
	for name := range b.Data {
		if _, ok := replace[name]; !ok {
			summary.Skipped = append(summary.Skipped, name)
		}
	}

	slices.Sort(summary.Skipped)

	if err := s.store.ReplaceAll(ctx, replace); err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	if err := s.store.ReplaceSettings(ctx, b.Settings); err != nil {
		return nil, fmt.Errorf("import settings: %w", err)
	}

	if len(summary.Skipped) > 0 {
		s.log.Warn(ctx, "import skipped unknown collections", "collections", summary.Skipped)
	}
	s.log.Info(ctx, "imported dataset", "records", b.Count(), "exportDate", b.ExportDate)

	if s.notifier != nil {
		s.notifier.NotifyLocalChange()
	}
	return summary, nil
}
