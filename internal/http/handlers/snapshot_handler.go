// Snapshot and status HTTP handlers.
//
//   - POST /snapshots        (record what is active at a point now)
//   - GET  /snapshots/{id}   (read a recorded snapshot)
//   - GET  /status           (server clock and newest publication stored)
//
// Idempotency:
// With an Idempotency-Key header, the first successful POST is remembered
// for (method+route, key). A retry with the same key returns the recorded
// snapshot with `Idempotency-Replayed: true` instead of creating another.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-meteo-warnings/internal/domain"
	"github.com/tbourn/go-meteo-warnings/internal/http/middleware"
	"github.com/tbourn/go-meteo-warnings/internal/repo"
	"github.com/tbourn/go-meteo-warnings/internal/services"
)

//
// DTOs
//

// CreateSnapshotRequest is the JSON payload for POST /snapshots.
type CreateSnapshotRequest struct {
	Lat *float64 `json:"lat" binding:"required" example:"50.061947"`
	Lon *float64 `json:"lon" binding:"required" example:"19.936856"`
	// Cache overrides the resolution cache policy; omitted means server default.
	Cache *bool `json:"cache,omitempty"`
}

// StatusResponse reports the server clock and store freshness.
type StatusResponse struct {
	Now           time.Time  `json:"now"`
	LastPublished *time.Time `json:"last_published"`
	CachedPoints  int64      `json:"cached_points" example:"42"`
}

//
// Handlers
//

// CreateSnapshot godoc
// @ID          createSnapshot
// @Summary     Record active advisories at a point
// @Description Resolves the point and stores which advisories are active there now. Supports Idempotency-Key for safe retries.
// @Tags        Snapshots
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false "Key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.CreateSnapshotRequest  true  "Point"
//
// @Success     201  {object}  domain.Snapshot
// @Success     200  {object}  domain.Snapshot  "Replay of an earlier request"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Point outside any county"
// @Failure     502  {object}  handlers.ErrorResponse  "Geocoder unavailable"
// @Router      /snapshots [post]
func (h *Handlers) CreateSnapshot(c *gin.Context) {
	ctx := c.Request.Context()

	var req CreateSnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "lat and lon are required")
		return
	}
	policy := services.PolicyDefault
	if req.Cache != nil {
		policy = services.PolicyBypass
		if *req.Cache {
			policy = services.PolicyUseCache
		}
	}

	key, hasKey := middleware.GetIdempotencyKey(c)
	scope := middleware.IdempotencyScope(c)
	if hasKey && h.db != nil {
		if prev, status := h.replay(c, scope, key); prev != nil {
			c.Header("Idempotency-Replayed", "true")
			ok(c, status, prev)
			return
		}
	}

	snap, err := h.svc.CreateSnapshot(ctx, *req.Lat, *req.Lon, policy)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	if hasKey && h.db != nil {
		_, err := repo.CreateIdempotency(ctx, h.db, scope, key, snap.ID, http.StatusCreated, h.idemTTL)
		if err != nil && !errors.Is(err, repo.ErrDuplicate) {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency record not stored")
		}
	}
	ok(c, http.StatusCreated, snap)
}

// replay returns the snapshot recorded under (scope, key), or nil.
func (h *Handlers) replay(c *gin.Context, scope, key string) (*domain.Snapshot, int) {
	ctx := c.Request.Context()
	rec, err := repo.GetIdempotency(ctx, h.db, scope, key, time.Now())
	if err != nil {
		return nil, 0
	}
	prev, err := h.svc.GetSnapshot(ctx, rec.ResourceID)
	if err != nil {
		return nil, 0
	}
	status := rec.Status
	if status == 0 {
		status = http.StatusOK
	}
	return prev, status
}

// GetSnapshot godoc
// @ID          getSnapshot
// @Summary     Read a snapshot
// @Tags        Snapshots
// @Produce     json
//
// @Param       id  path  string  true  "Snapshot ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.Snapshot
// @Failure     404  {object}  handlers.ErrorResponse  "Snapshot not found"
// @Router      /snapshots/{id} [get]
func (h *Handlers) GetSnapshot(c *gin.Context) {
	snap, err := h.svc.GetSnapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, snap)
}

// Status godoc
// @ID          status
// @Summary     Server clock and store freshness
// @Tags        Status
// @Produce     json
//
// @Success     200  {object}  handlers.StatusResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /status [get]
func (h *Handlers) Status(c *gin.Context) {
	st, err := h.svc.Status(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, StatusResponse{Now: st.Now, LastPublished: st.LastPublished, CachedPoints: st.CachedPoints})
}
