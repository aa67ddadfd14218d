package upstream

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/keurgui/access-gateway-go/internal/model"
)

// RecordStore is the remote store that owns access records. The gateway
// holds no record state of its own; every working set starts with a fetch
// through this interface.
type RecordStore interface {
	CreateRecord(ctx context.Context, token string, params model.CreateAccessParams) (*model.AccessRecord, error)
	ListRecords(ctx context.Context, token string, offset, limit int) ([]model.AccessRecord, error)
	GetRecord(ctx context.Context, token, id string) (*model.AccessRecord, error)
	UpdateRecord(ctx context.Context, token, id string, params model.UpdateAccessParams) (*model.AccessRecord, error)
	DeleteRecord(ctx context.Context, token, id string) error
	RenewRecord(ctx context.Context, token, id string, durationMinutes int) (*model.AccessRecord, error)
	ValidateQR(ctx context.Context, payload string) (*model.ValidationResult, error)
}

type recordClient struct {
	*Client
}

// NewRecordStore builds the HTTP client for the record store API.
func NewRecordStore(baseURL string, timeout time.Duration) RecordStore {
	return &recordClient{NewClient(baseURL, timeout)}
}

func (c *recordClient) CreateRecord(ctx context.Context, token string, params model.CreateAccessParams) (*model.AccessRecord, error) {
	var rec model.AccessRecord
	if err := c.do(ctx, http.MethodPost, "/forms/create-form", nil, params, token, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *recordClient) ListRecords(ctx context.Context, token string, offset, limit int) ([]model.AccessRecord, error) {
	query := url.Values{
		"skip":  {strconv.Itoa(offset)},
		"limit": {strconv.Itoa(limit)},
	}
	var records []model.AccessRecord
	if err := c.do(ctx, http.MethodGet, "/forms/all", query, nil, token, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *recordClient) GetRecord(ctx context.Context, token, id string) (*model.AccessRecord, error) {
	var rec model.AccessRecord
	if err := c.do(ctx, http.MethodGet, "/forms/"+url.PathEscape(id), nil, nil, token, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *recordClient) UpdateRecord(ctx context.Context, token, id string, params model.UpdateAccessParams) (*model.AccessRecord, error) {
	var rec model.AccessRecord
	if err := c.do(ctx, http.MethodPut, "/forms/"+url.PathEscape(id), nil, params, token, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *recordClient) DeleteRecord(ctx context.Context, token, id string) error {
	return c.do(ctx, http.MethodDelete, "/forms/"+url.PathEscape(id), nil, nil, token, nil)
}

func (c *recordClient) RenewRecord(ctx context.Context, token, id string, durationMinutes int) (*model.AccessRecord, error) {
	query := url.Values{"duration_minutes": {strconv.Itoa(durationMinutes)}}
	var rec model.AccessRecord
	if err := c.do(ctx, http.MethodPost, "/forms/"+url.PathEscape(id)+"/renew", query, nil, token, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *recordClient) ValidateQR(ctx context.Context, payload string) (*model.ValidationResult, error) {
	query := url.Values{"qr_data": {payload}}
	var result model.ValidationResult
	if err := c.do(ctx, http.MethodGet, "/forms/validate-qr-code", query, nil, "", &result); err != nil {
		return nil, err
	}
	return &result, nil
}
