// Advisory HTTP handlers.
//
// This file exposes the read endpoints for current, future, and live
// advisories:
//   - GET /warnings                      (point, current)
//   - GET /warnings/live                 (point, feed only, nothing stored)
//   - GET /warnings/future               (point, not yet started)
//   - GET /warnings/teryt/{code}         (county, current)
//   - GET /warnings/teryt/{code}/future  (county, not yet started)
//
// Handlers are transport-thin: they parse query parameters, call the
// warnings service, and shape the result.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-meteo-warnings/internal/domain"
	"github.com/tbourn/go-meteo-warnings/internal/http/middleware"
	"github.com/tbourn/go-meteo-warnings/internal/services"
	"github.com/tbourn/go-meteo-warnings/internal/utils"
)

//
// Service contract
//

// WarningsService is the application API the handlers depend on.
// Implementations must honour ctx cancellation.
type WarningsService interface {
	ForPoint(ctx context.Context, lat, lon float64, opts services.PointOptions) (*services.Result, error)
	ForRegion(ctx context.Context, code string) (*services.Result, error)
	HistoryForPoint(ctx context.Context, lat, lon float64, f services.HistoryFilter, opts services.PointOptions) (*services.Result, error)
	HistoryForRegion(ctx context.Context, code string, f services.HistoryFilter, refresh bool) (*services.Result, error)
	FutureForPoint(ctx context.Context, lat, lon float64, opts services.PointOptions) (*services.Result, error)
	FutureForRegion(ctx context.Context, code string) (*services.Result, error)
	Live(ctx context.Context, lat, lon float64, policy services.CachePolicy) (*services.Result, error)
	Status(ctx context.Context) (services.Status, error)
	CreateSnapshot(ctx context.Context, lat, lon float64, policy services.CachePolicy) (*domain.Snapshot, error)
	GetSnapshot(ctx context.Context, id string) (*domain.Snapshot, error)
}

//
// Handler wiring
//

// Options carries the optional collaborators of Handlers.
type Options struct {
	// DB enables weak ETags and idempotent snapshot replays. Nil disables both.
	DB *gorm.DB
	// Location interprets zone-less time query parameters. Nil means the
	// feed's default zone.
	Location *time.Location
	// IdempotencyTTL is how long a snapshot key is remembered; <= 0 means 24h.
	IdempotencyTTL time.Duration
}

// Handlers groups the advisory endpoints.
type Handlers struct {
	svc     WarningsService
	db      *gorm.DB
	loc     *time.Location
	idemTTL time.Duration
}

// New binds the handlers to svc.
func New(svc WarningsService, opts Options) *Handlers {
	h := &Handlers{svc: svc, db: opts.DB, loc: opts.Location, idemTTL: opts.IdempotencyTTL}
	if h.loc == nil {
		h.loc = domain.FeedLocation("")
	}
	if h.idemTTL <= 0 {
		h.idemTTL = 24 * time.Hour
	}
	return h
}

//
// DTOs
//

// PointView is the rounded query point.
type PointView struct {
	Lat float64 `json:"lat" example:"50.061947"`
	Lon float64 `json:"lon" example:"19.936856"`
}

// AreaView is the county an answer is scoped to.
type AreaView struct {
	Teryt4 string `json:"teryt4" example:"1261"`
	Name   string `json:"name"   example:"Kraków"`
}

// FiltersView echoes the normalized history filter.
type FiltersView struct {
	Since    *time.Time `json:"since"`
	Until    *time.Time `json:"until"`
	ActiveAt *time.Time `json:"active_at"`
}

// WarningsResponse is the body of every advisory listing.
type WarningsResponse struct {
	Point   *PointView        `json:"point,omitempty"`
	Area    AreaView          `json:"area"`
	Filters *FiltersView      `json:"filters,omitempty"`
	Count   int               `json:"count"`
	Items   []domain.Advisory `json:"items"`
	// False when a refresh was requested but the feed could not be reached;
	// items then come from stored data.
	UpstreamAvailable bool   `json:"upstream_available"`
	SavedSnapshotID   string `json:"saved_snapshot_id,omitempty"`
}

func toResponse(r *services.Result) WarningsResponse {
	out := WarningsResponse{
		Area:              AreaView{Teryt4: r.Area.Code, Name: r.Area.Name},
		Count:             len(r.Items),
		Items:             r.Items,
		UpstreamAvailable: r.UpstreamAvailable,
		SavedSnapshotID:   r.SnapshotID,
	}
	if out.Items == nil {
		out.Items = []domain.Advisory{}
	}
	if r.Point != nil {
		out.Point = &PointView{Lat: r.Point.Lat, Lon: r.Point.Lon}
	}
	if r.Filter != nil {
		out.Filters = &FiltersView{Since: r.Filter.Since, Until: r.Filter.Until, ActiveAt: r.Filter.ActiveAt}
	}
	return out
}

//
// Helpers
//

// pointParams reads lat and lon. Both must be present and numeric; range is
// checked by the service.
func pointParams(c *gin.Context) (lat, lon float64, ok bool) {
	la, errLat := strconv.ParseFloat(strings.TrimSpace(c.Query("lat")), 64)
	lo, errLon := strconv.ParseFloat(strings.TrimSpace(c.Query("lon")), 64)
	if errLat != nil || errLon != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "lat and lon are required numbers")
		return 0, 0, false
	}
	return la, lo, true
}

// cachePolicy maps ?cache= onto a resolver policy; absent means the server
// default.
func cachePolicy(c *gin.Context) services.CachePolicy {
	v, present := c.GetQuery("cache")
	if !present || strings.TrimSpace(v) == "" {
		return services.PolicyDefault
	}
	if utils.FlagDefault(v, true) {
		return services.PolicyUseCache
	}
	return services.PolicyBypass
}

func pointOptions(c *gin.Context) services.PointOptions {
	return services.PointOptions{
		Refresh: utils.FlagDefault(c.Query("refresh"), true),
		Save:    utils.FlagDefault(c.Query("save"), false),
		Policy:  cachePolicy(c),
	}
}

// respond writes r, or maps err.
func respond(c *gin.Context, r *services.Result, err error) {
	if err != nil {
		writeServiceError(c, err)
		return
	}
	middleware.MarkUpstream(c, r.UpstreamAvailable)
	ok(c, http.StatusOK, toResponse(r))
}

//
// Handlers
//

// CurrentForPoint godoc
// @ID          currentForPoint
// @Summary     Advisories active now at a point
// @Description Resolves the point to a county, refreshes from the feed (best effort), and lists advisories active now, most severe first.
// @Tags        Warnings
// @Produce     json
//
// @Param       lat      query  number  true  "Latitude (WGS84)"   example(50.061947)
// @Param       lon      query  number  true  "Longitude (WGS84)"  example(19.936856)
// @Param       refresh  query  bool    false "Pull the feed first"               default(true)
// @Param       save     query  bool    false "Record a snapshot of the answer"   default(false)
// @Param       cache    query  bool    false "Use the resolution cache (server default when absent)"
//
// @Success     200  {object}  handlers.WarningsResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Point outside any county"
// @Failure     502  {object}  handlers.ErrorResponse  "Geocoder unavailable"
// @Router      /warnings [get]
func (h *Handlers) CurrentForPoint(c *gin.Context) {
	lat, lon, okp := pointParams(c)
	if !okp {
		return
	}
	r, err := h.svc.ForPoint(c.Request.Context(), lat, lon, pointOptions(c))
	respond(c, r, err)
}

// LiveForPoint godoc
// @ID          liveForPoint
// @Summary     Advisories active now, straight from the feed
// @Description Reads the upstream feed without storing it and keeps records covering the point's county that are active now.
// @Tags        Warnings
// @Produce     json
//
// @Param       lat    query  number  true  "Latitude (WGS84)"   example(50.061947)
// @Param       lon    query  number  true  "Longitude (WGS84)"  example(19.936856)
// @Param       cache  query  bool    false "Use the resolution cache (server default when absent)"
//
// @Success     200  {object}  handlers.WarningsResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Point outside any county"
// @Failure     502  {object}  handlers.ErrorResponse  "Feed or geocoder unavailable"
// @Router      /warnings/live [get]
func (h *Handlers) LiveForPoint(c *gin.Context) {
	lat, lon, okp := pointParams(c)
	if !okp {
		return
	}
	r, err := h.svc.Live(c.Request.Context(), lat, lon, cachePolicy(c))
	respond(c, r, err)
}

// FutureForPoint godoc
// @ID          futureForPoint
// @Summary     Upcoming advisories at a point
// @Description Lists advisories for the point's county that start strictly after now, soonest first.
// @Tags        Warnings
// @Produce     json
//
// @Param       lat      query  number  true  "Latitude (WGS84)"   example(50.061947)
// @Param       lon      query  number  true  "Longitude (WGS84)"  example(19.936856)
// @Param       refresh  query  bool    false "Pull the feed first"  default(true)
// @Param       cache    query  bool    false "Use the resolution cache (server default when absent)"
//
// @Success     200  {object}  handlers.WarningsResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Point outside any county"
// @Failure     502  {object}  handlers.ErrorResponse  "Geocoder unavailable"
// @Router      /warnings/future [get]
func (h *Handlers) FutureForPoint(c *gin.Context) {
	lat, lon, okp := pointParams(c)
	if !okp {
		return
	}
	r, err := h.svc.FutureForPoint(c.Request.Context(), lat, lon, pointOptions(c))
	respond(c, r, err)
}

// CurrentForRegion godoc
// @ID          currentForRegion
// @Summary     Advisories active now in a county
// @Description Lists stored advisories covering the county that are active now. Never contacts upstream.
// @Tags        Warnings
// @Produce     json
//
// @Param       code  path  string  true  "4-digit TERYT county code"  example(1261)
//
// @Success     200  {object}  handlers.WarningsResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Malformed code"
// @Router      /warnings/teryt/{code} [get]
func (h *Handlers) CurrentForRegion(c *gin.Context) {
	r, err := h.svc.ForRegion(c.Request.Context(), c.Param("code"))
	respond(c, r, err)
}

// FutureForRegion godoc
// @ID          futureForRegion
// @Summary     Upcoming advisories in a county
// @Tags        Warnings
// @Produce     json
//
// @Param       code  path  string  true  "4-digit TERYT county code"  example(1261)
//
// @Success     200  {object}  handlers.WarningsResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Malformed code"
// @Router      /warnings/teryt/{code}/future [get]
func (h *Handlers) FutureForRegion(c *gin.Context) {
	r, err := h.svc.FutureForRegion(c.Request.Context(), c.Param("code"))
	respond(c, r, err)
}
