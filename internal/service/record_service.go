package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"marketplace/internal/domain"
	"marketplace/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ListResult is one page of records plus the numbers needed to render pagination.
type ListResult struct {
	Records    []domain.Record
	Page       int
	PageSize   int
	Total      int
	TotalPages int
}

// RecordService applies server-side rules to every record kind before it is stored.
type RecordService interface {
	List(ctx context.Context, resource string, q repository.RecordQuery) (*ListResult, error)
	Get(ctx context.Context, resource, id string) (domain.Record, error)
	Create(ctx context.Context, resource string, data []byte, docs ...domain.Document) (domain.Record, error)
	Update(ctx context.Context, resource, id string, data []byte) (domain.Record, error)
	Delete(ctx context.Context, resource, id string) error
}

type recordService struct {
	repo   repository.RecordRepository
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// NewRecordService creates a new instance of RecordService
func NewRecordService(repo repository.RecordRepository, logger *zap.Logger) RecordService {
	return &recordService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func (s *recordService) kind(resource string) (domain.Kind, error) {
	k, ok := domain.LookupKind(resource)
	if !ok {
		return domain.Kind{}, fmt.Errorf("%w: %s", domain.ErrUnknownKind, resource)
	}
	return k, nil
}

func (s *recordService) List(ctx context.Context, resource string, q repository.RecordQuery) (*ListResult, error) {
	kind, err := s.kind(resource)
	if err != nil {
		return nil, err
	}
	if q.Status != "" && q.Status != "all" && !kind.ValidStatus(q.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidRecord, q.Status)
	}

	records, total, err := s.repo.List(ctx, kind, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", resource, err)
	}

	result := &ListResult{Records: records, Page: 1, PageSize: total, Total: total, TotalPages: 1}
	if q.PageSize > 0 {
		result.Page = max(q.Page, 1)
		result.PageSize = q.PageSize
		result.TotalPages = int(math.Ceil(float64(total) / float64(q.PageSize)))
	}
	return result, nil
}

func (s *recordService) Get(ctx context.Context, resource, id string) (domain.Record, error) {
	kind, err := s.kind(resource)
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, kind, id)
}

// Create assigns the id, timestamps and derived fields, then validates and stores the record.
// Uploaded document metadata is attached to vendor registrations.
func (s *recordService) Create(ctx context.Context, resource string, data []byte, docs ...domain.Document) (domain.Record, error) {
	kind, err := s.kind(resource)
	if err != nil {
		return nil, err
	}

	record, err := domain.Decode(resource, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidRecord, err)
	}

	now := s.now().UTC()
	meta := record.Meta()
	meta.ID = s.newID()
	meta.CreatedAt = now
	meta.UpdatedAt = now

	if v, ok := record.(*domain.Vendor); ok {
		v.Documents = append(v.Documents, docs...)
		v.Status = domain.VendorPending
	}
	s.derive(kind, record)

	if err := domain.Validate(resource, record); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, kind, record); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", resource, err)
	}

	s.logger.Info("Record created",
		zap.String("resource", resource),
		zap.String("id", meta.ID),
		zap.String("status", record.RecordStatus()),
	)
	return record, nil
}

// Update replaces the stored record. The id and created_at of the stored copy always win.
func (s *recordService) Update(ctx context.Context, resource, id string, data []byte) (domain.Record, error) {
	kind, err := s.kind(resource)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	record, err := domain.Decode(resource, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidRecord, err)
	}

	meta := record.Meta()
	meta.ID = existing.Meta().ID
	meta.CreatedAt = existing.Meta().CreatedAt
	meta.UpdatedAt = s.now().UTC()

	if record.RecordStatus() == "" {
		record.SetStatus(existing.RecordStatus())
	}
	if v, ok := record.(*domain.Vendor); ok && v.Documents == nil {
		v.Documents = existing.(*domain.Vendor).Documents
	}
	s.derive(kind, record)

	if err := domain.Validate(resource, record); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, kind, record); err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update %s: %w", resource, err)
	}

	s.logger.Info("Record updated", zap.String("resource", resource), zap.String("id", id))
	return record, nil
}

func (s *recordService) Delete(ctx context.Context, resource, id string) error {
	kind, err := s.kind(resource)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, kind, id); err != nil {
		return err
	}
	s.logger.Info("Record deleted", zap.String("resource", resource), zap.String("id", id))
	return nil
}

// derive fills server-owned fields: default status, child ids, order totals, stock status.
func (s *recordService) derive(kind domain.Kind, record domain.Record) {
	if record.RecordStatus() == "" {
		record.SetStatus(kind.DefaultStatus())
	}

	switch r := record.(type) {
	case *domain.Category:
		for i := range r.Subcategories {
			if r.Subcategories[i].ID == "" {
				r.Subcategories[i].ID = s.newID()
			}
			if r.Subcategories[i].Status == "" {
				r.Subcategories[i].Status = domain.CategoryActive
			}
		}
	case *domain.InventoryItem:
		r.Status = domain.StockStatus(r.Stock, r.LowStockThreshold)
	case *domain.Order:
		if len(r.Items) > 0 {
			var total float64
			for _, it := range r.Items {
				total += float64(it.Quantity) * it.Price
			}
			r.Total = math.Round(total*100) / 100
		}
	case *domain.Inspection:
		for i := range r.Items {
			if r.Items[i].ID == "" {
				r.Items[i].ID = s.newID()
			}
		}
	}
}
