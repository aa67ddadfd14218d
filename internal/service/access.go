package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/keurgui/access-gateway-go/internal/audit"
	"github.com/keurgui/access-gateway-go/internal/config"
	"github.com/keurgui/access-gateway-go/internal/coordinator"
	apperrors "github.com/keurgui/access-gateway-go/internal/errors"
	"github.com/keurgui/access-gateway-go/internal/lifecycle"
	"github.com/keurgui/access-gateway-go/internal/model"
	"github.com/keurgui/access-gateway-go/internal/query"
	"github.com/keurgui/access-gateway-go/internal/sse"
	"github.com/keurgui/access-gateway-go/internal/stats"
	"github.com/keurgui/access-gateway-go/internal/upstream"
	"github.com/keurgui/access-gateway-go/internal/util"
)

const (
	fetchPageSize   = 100
	fetchMaxRecords = 10000
	recentCount     = 5
)

// AccessView is a record decorated with its derived lifecycle fields. State
// and TimeRemaining are computed at read time from a single clock sample
// per request, never stored.
type AccessView struct {
	model.AccessRecord
	State         model.AccessState `json:"state"`
	TimeRemaining string            `json:"time_remaining"`
	ShareURL      string            `json:"share_url,omitempty"`
}

// ListResult is a filtered listing plus the unfiltered total.
type ListResult struct {
	Records []AccessView `json:"records"`
	Total   int          `json:"total"`
}

// OverviewResult is the dashboard payload: aggregate stats plus the most
// recently created grants.
type OverviewResult struct {
	Stats  stats.Stats  `json:"stats"`
	Recent []AccessView `json:"recent"`
}

// DayResult is one calendar day's entries.
type DayResult struct {
	Day     string         `json:"day"`
	Entries []CalendarItem `json:"entries"`
}

type CalendarItem struct {
	Record   AccessView `json:"record"`
	Created  bool       `json:"created"`
	Expiring bool       `json:"expiring"`
}

// AccessService is the gateway's core: it pulls the resident's records from
// the upstream store into a per-request working set and serves every
// listing, aggregate, and mutation from it.
type AccessService struct {
	store      upstream.RecordStore
	coord      *coordinator.Coordinator
	sessions   coordinator.SessionInvalidator
	broker     *sse.Broker
	shareCache *ShareCache
	share      func(id string) string
}

func NewAccessService(
	store upstream.RecordStore,
	coord *coordinator.Coordinator,
	sessions coordinator.SessionInvalidator,
	broker *sse.Broker,
	shareCache *ShareCache,
	share func(id string) string,
) *AccessService {
	return &AccessService{
		store:      store,
		coord:      coord,
		sessions:   sessions,
		broker:     broker,
		shareCache: shareCache,
		share:      share,
	}
}

// invalidateOnAuthFailure clears the gateway session bound to the upstream
// token whenever the store rejects it, so a dead token cannot keep serving
// requests until the TTL sweep. The error passes through unchanged.
func (s *AccessService) invalidateOnAuthFailure(ctx context.Context, token string, err error) error {
	if err != nil && apperrors.IsAuth(err) && s.sessions != nil {
		if ierr := s.sessions.InvalidateByUpstreamToken(ctx, token); ierr != nil {
			log.Error().Err(ierr).Msg("failed to invalidate session after auth failure")
		}
	}
	return err
}

// fetchWorkingSet pulls the resident's full record list, paging until a
// short page. One fetch per request: every answer derived from it is
// consistent with a single upstream snapshot.
func (s *AccessService) fetchWorkingSet(ctx context.Context, token string) (*model.WorkingSet, error) {
	var all []model.AccessRecord
	for offset := 0; offset < fetchMaxRecords; offset += fetchPageSize {
		page, err := s.store.ListRecords(ctx, token, offset, fetchPageSize)
		if err != nil {
			return nil, s.invalidateOnAuthFailure(ctx, token, err)
		}
		all = append(all, page...)
		if len(page) < fetchPageSize {
			break
		}
	}
	return model.NewWorkingSet(all), nil
}

func (s *AccessService) view(rec model.AccessRecord, now time.Time) AccessView {
	return AccessView{
		AccessRecord:  rec,
		State:         lifecycle.Classify(rec, now),
		TimeRemaining: lifecycle.TimeRemaining(rec, now),
		ShareURL:      s.share(rec.ID),
	}
}

func (s *AccessService) views(records []model.AccessRecord, now time.Time) []AccessView {
	out := make([]AccessView, len(records))
	for i, rec := range records {
		out[i] = s.view(rec, now)
	}
	return out
}

// List returns the resident's records matching the filter, newest first.
func (s *AccessService) List(ctx context.Context, token string, f query.Filter) (*ListResult, error) {
	ws, err := s.fetchWorkingSet(ctx, token)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	matched := query.Apply(ws.Records(), f, now)
	return &ListResult{
		Records: s.views(matched, now),
		Total:   ws.Len(),
	}, nil
}

// Get returns one record by ID.
func (s *AccessService) Get(ctx context.Context, token, id string) (*AccessView, error) {
	rec, err := s.store.GetRecord(ctx, token, id)
	if err != nil {
		return nil, s.invalidateOnAuthFailure(ctx, token, err)
	}

	s.shareCache.Put(ctx, *rec)
	v := s.view(*rec, time.Now())
	return &v, nil
}

// Overview serves the dashboard: stats over the full working set plus the
// five most recent grants. Both derive from the same fetch and the same
// clock sample.
func (s *AccessService) Overview(ctx context.Context, token string) (*OverviewResult, error) {
	ws, err := s.fetchWorkingSet(ctx, token)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	records := ws.Records()
	sorted := query.Apply(records, query.Filter{}, now)
	return &OverviewResult{
		Stats:  stats.Summarize(records, now),
		Recent: s.views(query.Recent(sorted, recentCount), now),
	}, nil
}

// Stats recomputes aggregate counters over the resident's records.
func (s *AccessService) Stats(ctx context.Context, token string) (*stats.Stats, error) {
	ws, err := s.fetchWorkingSet(ctx, token)
	if err != nil {
		return nil, err
	}
	st := stats.Summarize(ws.Records(), time.Now())
	return &st, nil
}

// Calendar returns the entries for one local day. A record created and
// expiring the same day appears once, with both annotations set.
func (s *AccessService) Calendar(ctx context.Context, token string, day time.Time) (*DayResult, error) {
	ws, err := s.fetchWorkingSet(ctx, token)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	entries := query.OnDay(ws.Records(), day)
	items := make([]CalendarItem, len(entries))
	for i, e := range entries {
		items[i] = CalendarItem{
			Record:   s.view(e.Record, now),
			Created:  e.Created,
			Expiring: e.Expiring,
		}
	}
	return &DayResult{
		Day:     day.Format("2006-01-02"),
		Entries: items,
	}, nil
}

// Create validates the caller's input and registers a new grant upstream.
func (s *AccessService) Create(ctx context.Context, token, username string, params model.CreateAccessParams) (*AccessView, error) {
	params.GuestName = strings.TrimSpace(params.GuestName)
	params.GuestPhone = util.NormalizePhone(params.GuestPhone)

	if params.GuestName == "" {
		return nil, apperrors.MissingRequired("guest name")
	}
	if !util.IsValidPhone(params.GuestPhone) {
		return nil, apperrors.InvalidInput("phone number", "unrecognized format")
	}
	if params.DurationMinutes <= 0 {
		return nil, apperrors.InvalidInput("duration", "must be positive")
	}
	if params.DurationMinutes > config.MaxGrantMinutes {
		return nil, apperrors.InvalidInput("duration",
			fmt.Sprintf("must not exceed %d minutes", config.MaxGrantMinutes))
	}

	rec, err := s.store.CreateRecord(ctx, token, params)
	if err != nil {
		return nil, s.invalidateOnAuthFailure(ctx, token, err)
	}

	log.Info().
		Str("recordId", rec.ID).
		Str("guest", rec.GuestName).
		Time("expiresAt", rec.ExpiresAt).
		Msg("access created")

	audit.Log(ctx, audit.Event{
		Type:     audit.EventAccessCreate,
		Username: username,
		RecordID: rec.ID,
	})

	s.shareCache.Put(ctx, *rec)

	now := time.Now()
	v := s.view(*rec, now)
	s.publish(ctx, username, sse.EventAccessCreated, v)
	return &v, nil
}

// Update patches the guest fields of an existing grant.
func (s *AccessService) Update(ctx context.Context, token, id string, params model.UpdateAccessParams) (*AccessView, error) {
	if params.GuestName != nil {
		trimmed := strings.TrimSpace(*params.GuestName)
		if trimmed == "" {
			return nil, apperrors.MissingRequired("guest name")
		}
		params.GuestName = &trimmed
	}
	if params.GuestPhone != nil {
		normalized := util.NormalizePhone(*params.GuestPhone)
		if !util.IsValidPhone(normalized) {
			return nil, apperrors.InvalidInput("phone number", "unrecognized format")
		}
		params.GuestPhone = &normalized
	}
	if params.DurationMinutes != nil && (*params.DurationMinutes <= 0 || *params.DurationMinutes > config.MaxGrantMinutes) {
		return nil, apperrors.InvalidInput("duration", "out of range")
	}

	rec, err := s.store.UpdateRecord(ctx, token, id, params)
	if err != nil {
		return nil, s.invalidateOnAuthFailure(ctx, token, err)
	}

	v := s.view(*rec, time.Now())
	return &v, nil
}

// Renew extends a grant through the coordinator. Minutes <= 0 selects the
// default extension.
func (s *AccessService) Renew(ctx context.Context, token, username, id string, minutes int) (*AccessView, error) {
	if minutes <= 0 {
		minutes = config.DefaultRenewMinutes
	}
	if minutes > config.MaxGrantMinutes {
		return nil, apperrors.InvalidInput("duration",
			fmt.Sprintf("must not exceed %d minutes", config.MaxGrantMinutes))
	}

	ws, err := s.fetchWorkingSet(ctx, token)
	if err != nil {
		return nil, err
	}
	if ws.Get(id) == nil {
		return nil, apperrors.NotFound("Access record")
	}

	rec, err := s.coord.Renew(ctx, ws, token, id, minutes)
	if err != nil {
		return nil, err
	}

	s.shareCache.Put(ctx, *rec)
	v := s.view(*rec, time.Now())
	s.publish(ctx, username, sse.EventAccessRenewed, v)
	return &v, nil
}

// Revoke deletes a grant through the coordinator.
func (s *AccessService) Revoke(ctx context.Context, token, username, id string) error {
	ws, err := s.fetchWorkingSet(ctx, token)
	if err != nil {
		return err
	}
	if ws.Get(id) == nil {
		return apperrors.NotFound("Access record")
	}

	if err := s.coord.Revoke(ctx, ws, token, id); err != nil {
		return err
	}

	s.shareCache.Drop(ctx, id)
	s.publish(ctx, username, sse.EventAccessRevoked, map[string]string{"id": id})
	return nil
}

// ValidateQR checks a scanned payload against the store. No session is
// required: guards at the gate validate without logging in.
func (s *AccessService) ValidateQR(ctx context.Context, payload string) (*model.ValidationResult, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, apperrors.MissingRequired("qr payload")
	}

	result, err := s.store.ValidateQR(ctx, payload)
	if err != nil {
		return nil, err
	}

	audit.Log(ctx, audit.Event{
		Type:    audit.EventQRValidate,
		Details: map[string]interface{}{"valid": result.Valid},
	})
	return result, nil
}

// PublishStats recomputes the resident's counters and pushes them to their
// event stream. Used by the periodic refresh job.
func (s *AccessService) PublishStats(ctx context.Context, token, username string) error {
	st, err := s.Stats(ctx, token)
	if err != nil {
		return err
	}
	s.publish(ctx, username, sse.EventStatsUpdated, st)
	return nil
}

// Share serves the public QR page lookup. It reads only the cache: an
// entry survives exactly as long as the grant it mirrors.
func (s *AccessService) Share(ctx context.Context, id string) (*ShareEntry, error) {
	entry, err := s.shareCache.Get(ctx, id)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if entry == nil || !entry.ExpiresAt.After(time.Now()) {
		return nil, apperrors.NotFound("Access record")
	}
	return entry, nil
}

func (s *AccessService) publish(ctx context.Context, username, eventType string, payload any) {
	if s.broker == nil || username == "" {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("type", eventType).Msg("failed to marshal event payload")
		return
	}
	if err := s.broker.Publish(ctx, username, sse.Event{Type: eventType, Data: data}); err != nil {
		log.Error().Err(err).Str("type", eventType).Msg("failed to publish event")
	}
}
