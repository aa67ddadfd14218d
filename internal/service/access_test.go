package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/keurgui/access-gateway-go/internal/coordinator"
	apperrors "github.com/keurgui/access-gateway-go/internal/errors"
	"github.com/keurgui/access-gateway-go/internal/model"
	"github.com/keurgui/access-gateway-go/internal/query"
)

type mockRecordStore struct {
	mock.Mock
}

func (m *mockRecordStore) CreateRecord(ctx context.Context, token string, params model.CreateAccessParams) (*model.AccessRecord, error) {
	args := m.Called(ctx, token, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccessRecord), args.Error(1)
}

func (m *mockRecordStore) ListRecords(ctx context.Context, token string, offset, limit int) ([]model.AccessRecord, error) {
	args := m.Called(ctx, token, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AccessRecord), args.Error(1)
}

func (m *mockRecordStore) GetRecord(ctx context.Context, token, id string) (*model.AccessRecord, error) {
	args := m.Called(ctx, token, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccessRecord), args.Error(1)
}

func (m *mockRecordStore) UpdateRecord(ctx context.Context, token, id string, params model.UpdateAccessParams) (*model.AccessRecord, error) {
	args := m.Called(ctx, token, id, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccessRecord), args.Error(1)
}

func (m *mockRecordStore) DeleteRecord(ctx context.Context, token, id string) error {
	args := m.Called(ctx, token, id)
	return args.Error(0)
}

func (m *mockRecordStore) RenewRecord(ctx context.Context, token, id string, durationMinutes int) (*model.AccessRecord, error) {
	args := m.Called(ctx, token, id, durationMinutes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccessRecord), args.Error(1)
}

func (m *mockRecordStore) ValidateQR(ctx context.Context, payload string) (*model.ValidationResult, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ValidationResult), args.Error(1)
}

func shareURL(id string) string {
	return "https://gate.example.com/qr/" + id
}

type mockInvalidator struct {
	mock.Mock
}

func (m *mockInvalidator) InvalidateByUpstreamToken(ctx context.Context, upstreamToken string) error {
	args := m.Called(ctx, upstreamToken)
	return args.Error(0)
}

func newAccessService(store *mockRecordStore) *AccessService {
	return NewAccessService(store, coordinator.New(store, nil), nil, nil, nil, shareURL)
}

func record(id, name string, createdAt, expiresAt time.Time) model.AccessRecord {
	return model.AccessRecord{
		ID:         id,
		GuestName:  name,
		GuestPhone: "+221771234567",
		CreatedAt:  createdAt,
		ExpiresAt:  expiresAt,
		QRPayload:  "qr-" + id,
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	store := new(mockRecordStore)
	svc := newAccessService(store)
	ctx := context.Background()

	tests := []struct {
		name   string
		params model.CreateAccessParams
		code   apperrors.ErrorCode
	}{
		{
			name:   "blank guest name",
			params: model.CreateAccessParams{GuestName: "   ", GuestPhone: "+221771234567", DurationMinutes: 60},
			code:   apperrors.ErrCodeMissingRequired,
		},
		{
			name:   "unparseable phone",
			params: model.CreateAccessParams{GuestName: "Awa", GuestPhone: "not-a-phone", DurationMinutes: 60},
			code:   apperrors.ErrCodeInvalidInput,
		},
		{
			name:   "zero duration",
			params: model.CreateAccessParams{GuestName: "Awa", GuestPhone: "+221771234567", DurationMinutes: 0},
			code:   apperrors.ErrCodeInvalidInput,
		},
		{
			name:   "duration over the cap",
			params: model.CreateAccessParams{GuestName: "Awa", GuestPhone: "+221771234567", DurationMinutes: 31 * 24 * 60},
			code:   apperrors.ErrCodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, "tok", "resident", tt.params)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperrors.GetCode(err))
		})
	}

	store.AssertNotCalled(t, "CreateRecord", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateNormalizesPhoneAndDecoratesView(t *testing.T) {
	now := time.Now()
	created := record("r1", "Awa", now, now.Add(90*time.Minute))

	store := new(mockRecordStore)
	store.On("CreateRecord", mock.Anything, "tok", model.CreateAccessParams{
		GuestName:       "Awa",
		GuestPhone:      "+221771234567",
		DurationMinutes: 90,
	}).Return(&created, nil)

	svc := newAccessService(store)
	v, err := svc.Create(context.Background(), "tok", "resident", model.CreateAccessParams{
		GuestName:       "  Kim  ",
		GuestPhone:      "+221 77 123 45 67",
		DurationMinutes: 90,
	})
	require.NoError(t, err)

	assert.Equal(t, model.StateExpiringSoon, v.State)
	assert.Equal(t, "https://gate.example.com/qr/r1", v.ShareURL)
	assert.NotEmpty(t, v.TimeRemaining)
	store.AssertExpectations(t)
}

func TestListSortsNewestFirstAndReportsTotal(t *testing.T) {
	now := time.Now()
	records := []model.AccessRecord{
		record("old", "Moussa", now.Add(-48*time.Hour), now.Add(-47*time.Hour)),
		record("new", "Fatou", now.Add(-time.Hour), now.Add(time.Hour)),
		record("mid", "Omar", now.Add(-24*time.Hour), now.Add(-23*time.Hour)),
	}

	store := new(mockRecordStore)
	store.On("ListRecords", mock.Anything, "tok", 0, fetchPageSize).Return(records, nil)

	svc := newAccessService(store)
	res, err := svc.List(context.Background(), "tok", query.Filter{})
	require.NoError(t, err)

	require.Len(t, res.Records, 3)
	assert.Equal(t, "new", res.Records[0].ID)
	assert.Equal(t, "mid", res.Records[1].ID)
	assert.Equal(t, "old", res.Records[2].ID)
	assert.Equal(t, 3, res.Total)
}

func TestListFilterLeavesTotalUnfiltered(t *testing.T) {
	now := time.Now()
	records := []model.AccessRecord{
		record("a", "Moussa", now.Add(-2*time.Hour), now.Add(time.Hour)),
		record("b", "Fatou", now.Add(-3*time.Hour), now.Add(-time.Hour)),
	}

	store := new(mockRecordStore)
	store.On("ListRecords", mock.Anything, "tok", 0, fetchPageSize).Return(records, nil)

	svc := newAccessService(store)
	res, err := svc.List(context.Background(), "tok", query.Filter{Status: model.StatusActive})
	require.NoError(t, err)

	require.Len(t, res.Records, 1)
	assert.Equal(t, "a", res.Records[0].ID)
	assert.Equal(t, 2, res.Total)
}

func TestListPagesThroughFullPages(t *testing.T) {
	now := time.Now()
	first := make([]model.AccessRecord, fetchPageSize)
	for i := range first {
		first[i] = record(
			fmt.Sprintf("p%03d", i),
			"Guest",
			now.Add(-time.Duration(i)*time.Minute),
			now.Add(time.Hour),
		)
	}
	second := []model.AccessRecord{record("last", "Guest", now.Add(-200*time.Hour), now.Add(time.Hour))}

	store := new(mockRecordStore)
	store.On("ListRecords", mock.Anything, "tok", 0, fetchPageSize).Return(first, nil).Once()
	store.On("ListRecords", mock.Anything, "tok", fetchPageSize, fetchPageSize).Return(second, nil).Once()

	svc := newAccessService(store)
	res, err := svc.List(context.Background(), "tok", query.Filter{})
	require.NoError(t, err)

	assert.Equal(t, fetchPageSize+1, res.Total)
	store.AssertExpectations(t)
}

func TestOverviewReturnsStatsAndRecent(t *testing.T) {
	now := time.Now()
	var records []model.AccessRecord
	for i := 0; i < 7; i++ {
		records = append(records, record(
			"r"+string(rune('0'+i)),
			"Guest",
			now.Add(-time.Duration(i)*time.Hour),
			now.Add(time.Hour),
		))
	}

	store := new(mockRecordStore)
	store.On("ListRecords", mock.Anything, "tok", 0, fetchPageSize).Return(records, nil)

	svc := newAccessService(store)
	res, err := svc.Overview(context.Background(), "tok")
	require.NoError(t, err)

	assert.Equal(t, 7, res.Stats.Total)
	assert.Equal(t, 7, res.Stats.Active)
	require.Len(t, res.Recent, 5)
	assert.Equal(t, "r0", res.Recent[0].ID, "most recently created comes first")
}

func TestRenewDefaultsDuration(t *testing.T) {
	now := time.Now()
	existing := record("r1", "Awa", now.Add(-time.Hour), now.Add(10*time.Minute))
	renewed := record("r1", "Awa", existing.CreatedAt, now.Add(70*time.Minute))

	store := new(mockRecordStore)
	store.On("ListRecords", mock.Anything, "tok", 0, fetchPageSize).
		Return([]model.AccessRecord{existing}, nil)
	store.On("RenewRecord", mock.Anything, "tok", "r1", 60).Return(&renewed, nil)

	svc := newAccessService(store)
	v, err := svc.Renew(context.Background(), "tok", "resident", "r1", 0)
	require.NoError(t, err)
	assert.Equal(t, renewed.ExpiresAt, v.ExpiresAt)
	store.AssertExpectations(t)
}

func TestRenewUnknownRecordFailsFast(t *testing.T) {
	store := new(mockRecordStore)
	store.On("ListRecords", mock.Anything, "tok", 0, fetchPageSize).
		Return([]model.AccessRecord{}, nil)

	svc := newAccessService(store)
	_, err := svc.Renew(context.Background(), "tok", "resident", "missing", 60)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	store.AssertNotCalled(t, "RenewRecord", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRevokeDeletesRecord(t *testing.T) {
	now := time.Now()
	existing := record("r1", "Awa", now.Add(-time.Hour), now.Add(time.Hour))

	store := new(mockRecordStore)
	store.On("ListRecords", mock.Anything, "tok", 0, fetchPageSize).
		Return([]model.AccessRecord{existing}, nil)
	store.On("DeleteRecord", mock.Anything, "tok", "r1").Return(nil)

	svc := newAccessService(store)
	require.NoError(t, svc.Revoke(context.Background(), "tok", "resident", "r1"))
	store.AssertExpectations(t)
}

func TestCalendarAnnotatesSameDayRecordOnce(t *testing.T) {
	day := time.Date(2025, 3, 15, 0, 0, 0, 0, time.Local)
	rec := record("r1", "Awa",
		day.Add(9*time.Hour),
		day.Add(18*time.Hour),
	)

	store := new(mockRecordStore)
	store.On("ListRecords", mock.Anything, "tok", 0, fetchPageSize).
		Return([]model.AccessRecord{rec}, nil)

	svc := newAccessService(store)
	res, err := svc.Calendar(context.Background(), "tok", day.Add(12*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, "2025-03-15", res.Day)
	require.Len(t, res.Entries, 1)
	assert.True(t, res.Entries[0].Created)
	assert.True(t, res.Entries[0].Expiring)
}

func TestValidateQRRequiresPayload(t *testing.T) {
	store := new(mockRecordStore)
	svc := newAccessService(store)

	_, err := svc.ValidateQR(context.Background(), "   ")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))
	store.AssertNotCalled(t, "ValidateQR", mock.Anything, mock.Anything)
}

func TestValidateQRPassesPayloadThrough(t *testing.T) {
	result := &model.ValidationResult{Valid: true, Message: "Access granted"}

	store := new(mockRecordStore)
	store.On("ValidateQR", mock.Anything, "payload-xyz").Return(result, nil)

	svc := newAccessService(store)
	got, err := svc.ValidateQR(context.Background(), " payload-xyz ")
	require.NoError(t, err)
	assert.True(t, got.Valid)
	store.AssertExpectations(t)
}

func TestAuthFailureClearsSession(t *testing.T) {
	authErr := apperrors.Unauthorized("Invalid or expired credentials")

	t.Run("list invalidates the session", func(t *testing.T) {
		store := new(mockRecordStore)
		store.On("ListRecords", mock.Anything, "dead-tok", 0, fetchPageSize).
			Return(nil, authErr)

		sessions := new(mockInvalidator)
		sessions.On("InvalidateByUpstreamToken", mock.Anything, "dead-tok").Return(nil)

		svc := NewAccessService(store, coordinator.New(store, sessions), sessions, nil, nil, shareURL)
		_, err := svc.List(context.Background(), "dead-tok", query.Filter{})
		require.Error(t, err)
		assert.True(t, apperrors.IsAuth(err))
		sessions.AssertCalled(t, "InvalidateByUpstreamToken", mock.Anything, "dead-tok")
	})

	t.Run("create invalidates the session", func(t *testing.T) {
		store := new(mockRecordStore)
		store.On("CreateRecord", mock.Anything, "dead-tok", mock.Anything).
			Return(nil, authErr)

		sessions := new(mockInvalidator)
		sessions.On("InvalidateByUpstreamToken", mock.Anything, "dead-tok").Return(nil)

		svc := NewAccessService(store, coordinator.New(store, sessions), sessions, nil, nil, shareURL)
		_, err := svc.Create(context.Background(), "dead-tok", "alice", model.CreateAccessParams{
			GuestName:       "Awa Diop",
			GuestPhone:      "+221771234567",
			DurationMinutes: 60,
		})
		require.Error(t, err)
		sessions.AssertCalled(t, "InvalidateByUpstreamToken", mock.Anything, "dead-tok")
	})

	t.Run("non-auth failure leaves the session alone", func(t *testing.T) {
		store := new(mockRecordStore)
		store.On("ListRecords", mock.Anything, "tok", 0, fetchPageSize).
			Return(nil, apperrors.Upstream("store unavailable", nil))

		sessions := new(mockInvalidator)

		svc := NewAccessService(store, coordinator.New(store, sessions), sessions, nil, nil, shareURL)
		_, err := svc.List(context.Background(), "tok", query.Filter{})
		require.Error(t, err)
		sessions.AssertNotCalled(t, "InvalidateByUpstreamToken", mock.Anything, mock.Anything)
	})
}
