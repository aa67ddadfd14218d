// Package coordinator orchestrates renewal and revocation against the
// upstream record store and reconciles the caller's working set with the
// outcome. It enforces the one-in-flight rule: per record there is at most
// one outstanding renewal and one outstanding revocation, and the two kinds
// exclude each other.
package coordinator

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/keurgui/access-gateway-go/internal/audit"
	apperrors "github.com/keurgui/access-gateway-go/internal/errors"
	"github.com/keurgui/access-gateway-go/internal/model"
	"github.com/keurgui/access-gateway-go/internal/upstream"
)

// SessionInvalidator clears the gateway session bound to an upstream token.
// The coordinator triggers it on any auth-classified upstream failure; it
// never retries such a failure.
type SessionInvalidator interface {
	InvalidateByUpstreamToken(ctx context.Context, upstreamToken string) error
}

type flightKey struct {
	recordID string
	kind     model.OperationKind
}

type flight struct {
	done chan struct{}
	rec  *model.AccessRecord
	err  error
}

type Coordinator struct {
	store    upstream.RecordStore
	sessions SessionInvalidator

	mu       sync.Mutex
	inflight map[flightKey]*flight
}

func New(store upstream.RecordStore, sessions SessionInvalidator) *Coordinator {
	return &Coordinator{
		store:    store,
		sessions: sessions,
		inflight: make(map[flightKey]*flight),
	}
}

// Renew extends the record's validity by additionalMinutes through the
// store and, on success, replaces the working-set record wholesale with the
// server's response; the server is the sole authority for ExpiresAt and
// QRPayload after a renewal. On failure the working set is untouched. A
// duplicate renew for the same record joins the outstanding call instead of
// issuing a second one.
func (c *Coordinator) Renew(ctx context.Context, ws *model.WorkingSet, token, recordID string, additionalMinutes int) (*model.AccessRecord, error) {
	fl, owner, err := c.begin(recordID, model.OpRenew)
	if err != nil {
		return nil, err
	}

	if owner {
		opID := uuid.NewString()
		log.Info().
			Str("opId", opID).
			Str("recordId", recordID).
			Int("minutes", additionalMinutes).
			Msg("renewing access")

		rec, callErr := c.store.RenewRecord(ctx, token, recordID, additionalMinutes)
		c.finish(recordID, model.OpRenew, fl, rec, callErr)

		audit.Log(ctx, audit.Event{
			Type:     audit.EventAccessRenew,
			RecordID: recordID,
			Details:  map[string]interface{}{"opId": opID, "ok": callErr == nil},
		})

		if callErr != nil && apperrors.IsAuth(callErr) {
			c.invalidate(ctx, token)
		}
	} else {
		select {
		case <-fl.done:
		case <-ctx.Done():
			return nil, apperrors.Internal("renewal interrupted").WithCause(ctx.Err())
		}
	}

	return c.applyRenew(ws, recordID, fl)
}

// Revoke deletes the record through the store and, on success, removes it
// from the working set. On failure the record is retained so the caller can
// retry. A duplicate revoke joins the outstanding call.
func (c *Coordinator) Revoke(ctx context.Context, ws *model.WorkingSet, token, recordID string) error {
	fl, owner, err := c.begin(recordID, model.OpRevoke)
	if err != nil {
		return err
	}

	if owner {
		opID := uuid.NewString()
		log.Info().
			Str("opId", opID).
			Str("recordId", recordID).
			Msg("revoking access")

		callErr := c.store.DeleteRecord(ctx, token, recordID)
		c.finish(recordID, model.OpRevoke, fl, nil, callErr)

		audit.Log(ctx, audit.Event{
			Type:     audit.EventAccessRevoke,
			RecordID: recordID,
			Details:  map[string]interface{}{"opId": opID, "ok": callErr == nil},
		})

		if callErr != nil && apperrors.IsAuth(callErr) {
			c.invalidate(ctx, token)
		}
	} else {
		select {
		case <-fl.done:
		case <-ctx.Done():
			return apperrors.Internal("revocation interrupted").WithCause(ctx.Err())
		}
	}

	return c.applyRevoke(ws, recordID, fl)
}

// begin claims the in-flight marker for (recordID, kind). It returns the
// flight and whether the caller owns it (must perform the upstream call).
// A request while the opposite kind is outstanding for the same record is
// rejected outright.
func (c *Coordinator) begin(recordID string, kind model.OperationKind) (*flight, bool, error) {
	other := model.OpRevoke
	if kind == model.OpRevoke {
		other = model.OpRenew
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.inflight[flightKey{recordID, other}]; busy {
		return nil, false, apperrors.OperationInFlight(string(other), recordID)
	}
	if fl, ok := c.inflight[flightKey{recordID, kind}]; ok {
		return fl, false, nil
	}

	fl := &flight{done: make(chan struct{})}
	c.inflight[flightKey{recordID, kind}] = fl
	return fl, true, nil
}

func (c *Coordinator) finish(recordID string, kind model.OperationKind, fl *flight, rec *model.AccessRecord, err error) {
	fl.rec = rec
	fl.err = err

	c.mu.Lock()
	delete(c.inflight, flightKey{recordID, kind})
	c.mu.Unlock()

	close(fl.done)
}

// applyRenew reconciles ws with the flight outcome. Application is
// serialized so joined callers sharing a working set cannot race; applying
// the same server record twice is harmless.
func (c *Coordinator) applyRenew(ws *model.WorkingSet, recordID string, fl *flight) (*model.AccessRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if fl.err != nil {
		if apperrors.IsNotFound(fl.err) {
			// The store no longer knows the record: the deletion is
			// confirmed, drop it locally.
			ws.Remove(recordID)
		}
		return nil, fl.err
	}

	ws.Replace(*fl.rec)
	rec := *fl.rec
	return &rec, nil
}

func (c *Coordinator) applyRevoke(ws *model.WorkingSet, recordID string, fl *flight) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if fl.err != nil {
		if apperrors.IsNotFound(fl.err) {
			ws.Remove(recordID)
		}
		return fl.err
	}

	ws.Remove(recordID)
	return nil
}

func (c *Coordinator) invalidate(ctx context.Context, token string) {
	if c.sessions == nil {
		return
	}
	if err := c.sessions.InvalidateByUpstreamToken(ctx, token); err != nil {
		log.Error().Err(err).Msg("failed to invalidate session after auth failure")
	}
}
