package importer

import (
	"context"
	"errors"
	"log/slog"

	"handvault/internal/hand"
)

// insertBatch runs the multi-phase insert protocol over one file's parsed
// hands. Primary writes ride the bulk buffers and only flush on the last
// hand; a late failure discards the trailing hand's buffered work and
// re-runs the flush from the last hand that made it through cleanly.
func (im *Importer) insertBatch(ctx context.Context, hands []*hand.Hand, fileID int64) (stored, dups, errs int) {
	// Phase 1: resolve ids outside any buffering.
	prepped := hands[:0:0]
	for _, h := range hands {
		if err := h.PrepInsert(ctx, im.st); err != nil {
			slog.Error("prep failed", "hand", h.SiteHandNo, "err", err, "snippet", h.Snippet())
			errs++
			continue
		}
		prepped = append(prepped, h)
	}

	// Phase 2: derive positions, profits, and stat lines in memory.
	assembled := prepped[:0:0]
	for _, h := range prepped {
		if err := h.Assemble(); err != nil {
			slog.Error("assemble failed", "hand", h.SiteHandNo, "err", err, "snippet", h.Snippet())
			errs++
			continue
		}
		assembled = append(assembled, h)
	}

	// Phase 3: core hooks, buffered; flush rides the last hand.
	var ihands []*hand.Hand
	backtrack := false
	for i, h := range assembled {
		doInsert := i == len(assembled)-1
		err := im.runCoreHooks(ctx, h, fileID, doInsert)
		switch {
		case err == nil:
			ihands = append(ihands, h)
		case errors.Is(err, hand.ErrDuplicate):
			dups++
			if doInsert && len(ihands) > 0 {
				backtrack = true
			}
		default:
			slog.Error("insert failed", "hand", h.SiteHandNo, "err", err, "snippet", h.Snippet())
			errs++
			if h.DBIDHands != 0 {
				im.st.Discard(h.DBIDHands)
			}
			if doInsert && len(ihands) > 0 {
				backtrack = true
			}
		}
	}

	// The flush carrier failed, so the buffers never hit the database. Walk
	// back to the most recent clean hand and flush from there, shedding
	// hands whose re-run also fails.
	if backtrack {
		for len(ihands) > 0 {
			last := ihands[len(ihands)-1]
			im.st.Discard(last.DBIDHands)
			err := im.runCoreHooks(ctx, last, fileID, true)
			if err == nil {
				break
			}
			slog.Error("backtrack flush failed", "hand", last.SiteHandNo, "err", err)
			errs++
			im.st.Discard(last.DBIDHands)
			ihands = ihands[:len(ihands)-1]
		}
		if len(ihands) == 0 {
			if err := im.st.ResetBulkCache(false); err != nil {
				slog.Warn("bulk cache reset failed", "err", err)
			}
		}
	}

	// Phase 4: secondary per-hand tables for the hands that made it in.
	for i, h := range ihands {
		doInsert := i == len(ihands)-1
		if err := im.runSecondaryHooks(ctx, h, doInsert); err != nil {
			slog.Error("secondary insert failed", "hand", h.SiteHandNo, "err", err)
			errs++
		}
	}

	// Phase 5: best-effort HUD forwarding.
	if im.notifier.Enabled() {
		for _, h := range ihands {
			im.notifier.SendHandID(h.DBIDHands)
		}
	}

	return len(ihands), dups, errs
}

// runCoreHooks claims the hand id and drives the primary buffered hooks in
// dependency order: the session engine flushes first so the week, month, and
// session ids exist for the Hands row and the calendar-scoped caches.
func (im *Importer) runCoreHooks(ctx context.Context, h *hand.Hand, fileID int64, doInsert bool) error {
	if h.DBIDHands == 0 {
		if err := h.GetHandID(ctx, im.st); err != nil {
			return err
		}
	}
	if err := h.UpdateSessionsCache(ctx, im.st, doInsert); err != nil {
		return err
	}
	if err := h.InsertHands(ctx, im.st, fileID, doInsert); err != nil {
		return err
	}
	if err := h.UpdateCardsCache(ctx, im.st, doInsert); err != nil {
		return err
	}
	if err := h.UpdatePositionsCache(ctx, im.st, doInsert); err != nil {
		return err
	}
	if err := h.UpdateHudCache(ctx, im.st, doInsert); err != nil {
		return err
	}
	return h.UpdateTourneyResults(ctx, im.st)
}

func (im *Importer) runSecondaryHooks(ctx context.Context, h *hand.Hand, doInsert bool) error {
	if err := h.InsertHandsPlayers(ctx, im.st, doInsert); err != nil {
		return err
	}
	if err := h.InsertHandsActions(ctx, im.st, doInsert); err != nil {
		return err
	}
	if err := h.InsertHandsStove(ctx, im.st, doInsert); err != nil {
		return err
	}
	return h.InsertHandsPots(ctx, im.st, doInsert)
}
