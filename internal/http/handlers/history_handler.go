// History HTTP handlers.
//
// This file exposes filtered advisory history:
//   - GET /history                 (point)
//   - GET /history/teryt/{code}    (county, weak ETag when not refreshing)
//
// Filters: active_at wins over since/until; reversed since/until are swapped
// by the service and echoed back normalized. Time values are a date, a local
// date-time, or RFC 3339; anything unparseable is ignored.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-meteo-warnings/internal/domain"
	"github.com/tbourn/go-meteo-warnings/internal/repo"
	"github.com/tbourn/go-meteo-warnings/internal/services"
	"github.com/tbourn/go-meteo-warnings/internal/utils"
)

func (h *Handlers) historyFilter(c *gin.Context) services.HistoryFilter {
	return services.HistoryFilter{
		Since:    domain.ParseQueryTime(c.Query("since"), h.loc),
		Until:    domain.ParseQueryTime(c.Query("until"), h.loc),
		ActiveAt: domain.ParseQueryTime(c.Query("active_at"), h.loc),
	}
}

// HistoryForPoint godoc
// @ID          historyForPoint
// @Summary     Advisory history at a point
// @Description Resolves the point, refreshes (best effort), and lists stored advisories matching the filter, newest window first.
// @Tags        History
// @Produce     json
//
// @Param       lat        query  number  true  "Latitude (WGS84)"   example(50.061947)
// @Param       lon        query  number  true  "Longitude (WGS84)"  example(19.936856)
// @Param       since      query  string  false "Window start"       example(2025-01-01)
// @Param       until      query  string  false "Window end"         example(2025-01-31T23:59:59)
// @Param       active_at  query  string  false "Instant; overrides since/until"  example(2025-01-15T12:00:00Z)
// @Param       refresh    query  bool    false "Pull the feed first"  default(true)
// @Param       cache      query  bool    false "Use the resolution cache (server default when absent)"
//
// @Success     200  {object}  handlers.WarningsResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Point outside any county"
// @Failure     502  {object}  handlers.ErrorResponse  "Geocoder unavailable"
// @Router      /history [get]
func (h *Handlers) HistoryForPoint(c *gin.Context) {
	lat, lon, okp := pointParams(c)
	if !okp {
		return
	}
	opts := pointOptions(c)
	opts.Save = false
	r, err := h.svc.HistoryForPoint(c.Request.Context(), lat, lon, h.historyFilter(c), opts)
	respond(c, r, err)
}

// HistoryForRegion godoc
// @ID          historyForRegion
// @Summary     Advisory history in a county
// @Description Lists stored advisories covering the county that match the filter. With refresh=0 a weak ETag is returned and If-None-Match may yield 304.
// @Tags        History
// @Produce     json
//
// @Param       code           path    string  true  "4-digit TERYT county code"  example(1261)
// @Param       since          query   string  false "Window start"  example(2025-01-01)
// @Param       until          query   string  false "Window end"    example(2025-01-31)
// @Param       active_at      query   string  false "Instant; overrides since/until"
// @Param       refresh        query   bool    false "Pull the feed first"  default(true)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
//
// @Success     200  {object}  handlers.WarningsResponse
// @Header      200  {string}  ETag  "Weak ETag (refresh=0 only)"
// @Success     304  {string}  string  "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Malformed code"
// @Router      /history/teryt/{code} [get]
func (h *Handlers) HistoryForRegion(c *gin.Context) {
	ctx := c.Request.Context()
	code := c.Param("code")
	refresh := utils.FlagDefault(c.Query("refresh"), true)

	// A refresh can change the data, so only plain reads are cacheable.
	if !refresh && h.db != nil && domain.ValidRegionCode(code) {
		if count, maxTS, err := repo.AdvisoryStats(ctx, h.db, code); err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.UnixNano()
			}
			etag := fmt.Sprintf(`W/"history:%s:%d:%d"`, code, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	r, err := h.svc.HistoryForRegion(ctx, code, h.historyFilter(c), refresh)
	respond(c, r, err)
}
