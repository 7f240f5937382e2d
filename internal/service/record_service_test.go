package service

import (
	"context"
	"testing"
	"time"

	"marketplace/internal/domain"
	"marketplace/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockRecordRepository struct {
	records map[string]domain.Record
	lastQ   repository.RecordQuery
}

func newMockRecordRepository() *mockRecordRepository {
	return &mockRecordRepository{records: make(map[string]domain.Record)}
}

func key(kind domain.Kind, id string) string { return kind.Resource + "/" + id }

func (m *mockRecordRepository) Create(ctx context.Context, kind domain.Kind, record domain.Record) error {
	if _, exists := m.records[key(kind, record.RecordID())]; exists {
		return repository.ErrRecordAlreadyExists
	}
	m.records[key(kind, record.RecordID())] = record
	return nil
}

func (m *mockRecordRepository) Update(ctx context.Context, kind domain.Kind, record domain.Record) error {
	if _, exists := m.records[key(kind, record.RecordID())]; !exists {
		return repository.ErrRecordNotFound
	}
	m.records[key(kind, record.RecordID())] = record
	return nil
}

func (m *mockRecordRepository) Delete(ctx context.Context, kind domain.Kind, id string) error {
	if _, exists := m.records[key(kind, id)]; !exists {
		return repository.ErrRecordNotFound
	}
	delete(m.records, key(kind, id))
	return nil
}

func (m *mockRecordRepository) FindByID(ctx context.Context, kind domain.Kind, id string) (domain.Record, error) {
	r, exists := m.records[key(kind, id)]
	if !exists {
		return nil, repository.ErrRecordNotFound
	}
	return r, nil
}

func (m *mockRecordRepository) List(ctx context.Context, kind domain.Kind, q repository.RecordQuery) ([]domain.Record, int, error) {
	m.lastQ = q
	var out []domain.Record
	for _, r := range m.records {
		out = append(out, r)
	}
	return out, len(out), nil
}

func newTestRecordService() (*recordService, *mockRecordRepository) {
	repo := newMockRecordRepository()
	s := NewRecordService(repo, zap.NewNop()).(*recordService)
	s.now = func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }
	n := 0
	s.newID = func() string {
		n++
		return "id-" + string(rune('0'+n))
	}
	return s, repo
}

func TestRecordService_CreateAssignsServerFields(t *testing.T) {
	s, repo := newTestRecordService()
	ctx := context.Background()

	rec, err := s.Create(ctx, "categories", []byte(`{"id":"client-chosen","name":"Bedding","subcategories":[{"name":"Sheets"}]}`))
	require.NoError(t, err)

	c := rec.(*domain.Category)
	assert.Equal(t, "id-1", c.ID)
	assert.Equal(t, "id-2", c.Subcategories[0].ID)
	assert.Equal(t, domain.CategoryActive, c.Status)
	assert.Equal(t, domain.CategoryActive, c.Subcategories[0].Status)
	assert.Equal(t, s.now(), c.CreatedAt)
	assert.Contains(t, repo.records, "categories/id-1")
}

func TestRecordService_DerivedFields(t *testing.T) {
	s, _ := newTestRecordService()
	ctx := context.Background()

	rec, err := s.Create(ctx, "inventory", []byte(`{"name":"Towel","sku":"T1","price":5,"stock":3,"low_stock_threshold":5,"status":"IN_STOCK"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.StockLow, rec.RecordStatus())

	rec, err = s.Create(ctx, "orders", []byte(`{"customer":"Asha","items":[{"name":"Towel","quantity":3,"price":1.1},{"name":"Mat","quantity":1,"price":10}]}`))
	require.NoError(t, err)
	assert.Equal(t, 13.3, rec.(*domain.Order).Total)
	assert.Equal(t, domain.OrderPending, rec.RecordStatus())
}

func TestRecordService_VendorRegistration(t *testing.T) {
	s, _ := newTestRecordService()

	rec, err := s.Create(context.Background(), "vendors",
		[]byte(`{"business_name":"Acme","email":"a@acme.in","status":"APPROVED"}`),
		domain.Document{Field: "certification", FileName: "cert.pdf", ContentType: "application/pdf", Size: 42},
	)
	require.NoError(t, err)

	v := rec.(*domain.Vendor)
	assert.Equal(t, domain.VendorPending, v.Status, "self registration cannot approve itself")
	require.Len(t, v.Documents, 1)
	assert.Equal(t, "cert.pdf", v.Documents[0].FileName)
}

func TestRecordService_CreateRejects(t *testing.T) {
	s, _ := newTestRecordService()
	ctx := context.Background()

	_, err := s.Create(ctx, "widgets", []byte(`{}`))
	assert.ErrorIs(t, err, domain.ErrUnknownKind)

	_, err = s.Create(ctx, "categories", []byte(`{"status":"ACTIVE"}`))
	assert.ErrorIs(t, err, domain.ErrInvalidRecord)

	_, err = s.Create(ctx, "categories", []byte(`{"name":"Bath","status":"archived"}`))
	assert.ErrorIs(t, err, domain.ErrInvalidRecord)

	_, err = s.Create(ctx, "categories", []byte(`not json`))
	assert.ErrorIs(t, err, domain.ErrInvalidRecord)
}

func TestRecordService_UpdateKeepsIdentity(t *testing.T) {
	s, _ := newTestRecordService()
	ctx := context.Background()

	created, err := s.Create(ctx, "messages", []byte(`{"sender":"ops","subject":"Hi","status":"UNREAD"}`))
	require.NoError(t, err)
	createdAt := created.Meta().CreatedAt

	s.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	updated, err := s.Update(ctx, "messages", created.RecordID(), []byte(`{"id":"other","sender":"ops","subject":"Re: Hi"}`))
	require.NoError(t, err)

	assert.Equal(t, created.RecordID(), updated.RecordID())
	assert.Equal(t, createdAt, updated.Meta().CreatedAt)
	assert.Equal(t, s.now(), updated.Meta().UpdatedAt)
	assert.Equal(t, domain.MessageUnread, updated.RecordStatus(), "omitted status keeps the stored one")

	_, err = s.Update(ctx, "messages", "missing", []byte(`{"sender":"ops","subject":"x"}`))
	assert.ErrorIs(t, err, repository.ErrRecordNotFound)
}

func TestRecordService_ListAndDelete(t *testing.T) {
	s, repo := newTestRecordService()
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		_, err := s.Create(ctx, "coupons", []byte(`{"code":"`+name+`"}`))
		require.NoError(t, err)
	}

	res, err := s.List(ctx, "coupons", repository.RecordQuery{Page: 0, PageSize: 2, Status: "all"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 2, res.TotalPages)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, "all", repo.lastQ.Status)

	res, err = s.List(ctx, "coupons", repository.RecordQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalPages)
	assert.Equal(t, 3, res.PageSize)

	_, err = s.List(ctx, "coupons", repository.RecordQuery{Status: "bogus"})
	assert.ErrorIs(t, err, domain.ErrInvalidRecord)

	require.NoError(t, s.Delete(ctx, "coupons", "id-1"))
	assert.ErrorIs(t, s.Delete(ctx, "coupons", "id-1"), repository.ErrRecordNotFound)
}
