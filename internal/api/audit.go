package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/hearthops/hearth-core/internal/audit"
)

// auditTrail enqueues a best-effort audit entry for asynchronous write.
//
// This path is for general activity only (logins, secret CRUD, settings).
// Compliance-critical events — unlock attempts, revocations — never go
// through here; they are written synchronously inside the vault session
// manager and the grant registry so their failures propagate.
func (s *Server) auditTrail(householdID, actorID, action, entityType, entityID string, details map[string]any) {
	entry := &audit.Entry{
		HouseholdID: householdID,
		ActorID:     actorID,
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		Outcome:     audit.OutcomeSuccess,
		Details:     details,
	}

	select {
	case s.auditCh <- entry:
	default:
		s.logger.Warn("audit channel full — dropping entry",
			"action", action,
			"entity_type", entityType,
		)
	}
}

// drainAuditLog reads entries from the audit channel and writes them serially.
// This avoids unbounded goroutine creation and is kinder to SQLite's serial write model.
// It runs until the context is cancelled, then drains remaining entries.
func (s *Server) drainAuditLog(ctx context.Context) {
	for {
		select {
		case entry := <-s.auditCh:
			if err := s.auditRepo.Create(context.Background(), entry); err != nil {
				s.logger.Error("audit write failed",
					"action", entry.Action,
					"entity_type", entry.EntityType,
					"error", err,
				)
			}
		case <-ctx.Done():
			// Drain remaining entries before exiting
			for {
				select {
				case entry := <-s.auditCh:
					if err := s.auditRepo.Create(context.Background(), entry); err != nil {
						s.logger.Error("audit write failed during shutdown",
							"action", entry.Action,
							"error", err,
						)
					}
				default:
					return
				}
			}
		}
	}
}

// handleListAudit returns the household's audit trail, paginated and
// filterable by action, entity type, entity ID, and outcome.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	q := r.URL.Query()
	filter := audit.Filter{
		HouseholdID: claims.HouseholdID,
		Action:      q.Get("action"),
		EntityType:  q.Get("entity_type"),
		EntityID:    q.Get("entity_id"),
		Outcome:     q.Get("outcome"),
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("list audit failed", "error", err)
		writeInternalError(w, "failed to list audit entries")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
