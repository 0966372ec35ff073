package rest

import (
	"math"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/acbops/tracker"
	"github.com/acbops/tracker/internal/domain"
	"github.com/acbops/tracker/internal/present/rest/middleware"
	"github.com/acbops/tracker/internal/present/rest/presenter"
	"github.com/acbops/tracker/internal/service"
	"github.com/acbops/tracker/internal/usecase"
	"github.com/acbops/tracker/internal/utils"
)

type Handler struct {
	authz      *tracker.Authorizer
	shipments  *usecase.ShipmentUsecase
	presence   *service.PresenceService
	auth       *service.AuthService
	heartbeat  time.Duration
	fieldOrder map[string]int64
}

func NewHandler(
	authz *tracker.Authorizer,
	shipments *usecase.ShipmentUsecase,
	presence *service.PresenceService,
	auth *service.AuthService,
	heartbeat time.Duration,
) *Handler {
	fieldOrder := make(map[string]int64)
	for i, fd := range authz.Catalog().Descriptors() {
		fieldOrder[fd.Key] = int64(i)
	}
	return &Handler{
		authz:      authz,
		shipments:  shipments,
		presence:   presence,
		auth:       auth,
		heartbeat:  heartbeat,
		fieldOrder: fieldOrder,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo, authmw *middleware.AuthMiddleware) {
	e.GET("/health", h.handleHealth)
	e.POST("/auth/login", h.handleLogin)
	e.POST("/auth/logout", h.handleLogout, authmw.RequireAuth)
	e.GET("/me", h.handleMe, authmw.RequireAuth)

	e.GET("/shipments", h.handleList, authmw.RequireAuth)
	e.POST("/shipments", h.handleCreate, authmw.RequireAuth)
	e.PATCH("/shipments/bulk", h.handleBulkUpdate, authmw.RequireAuth)
	e.GET("/shipments/:id", h.handleGet, authmw.RequireAuth)
	e.PATCH("/shipments/:id", h.handleUpdate, authmw.RequireAuth)
	e.DELETE("/shipments/:id", h.handleDelete, authmw.RequireAuth)

	e.POST("/presence/begin", h.handlePresenceBegin, authmw.RequireAuth)
	e.POST("/presence/end", h.handlePresenceEnd, authmw.RequireAuth)
	e.GET("/realtime", h.handleRealtime)
}

func (h *Handler) handleHealth(c echo.Context) error {
	return presenter.OK(c, echo.Map{"status": "ok"})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(c echo.Context) error {
	ctx := c.Request().Context()

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, "invalid request body")
	}
	if req.Username == "" || req.Password == "" {
		return presenter.BadRequest(c, "username and password are required")
	}

	token, user, err := h.auth.Login(ctx, req.Username, req.Password)
	if err != nil {
		return presenter.Unauthorized(c, "invalid credentials")
	}

	return presenter.OK(c, echo.Map{
		"token": token,
		"user": echo.Map{
			"id":          user.ID,
			"username":    user.Username,
			"displayName": user.DisplayName,
			"role":        user.Role,
		},
	})
}

func (h *Handler) handleLogout(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.auth.Logout(ctx, middleware.BearerToken(c)); err != nil {
		return presenter.InternalError(c, err)
	}
	return presenter.OK(c, echo.Map{"ok": true})
}

func (h *Handler) handleMe(c echo.Context) error {
	ctx := c.Request().Context()

	actor, ok := middleware.ActorFrom(ctx)
	if !ok {
		return presenter.Unauthorized(c, "unauthorized")
	}

	user, err := h.auth.CurrentUser(ctx, actor.ID)
	if err != nil {
		return presenter.Unauthorized(c, "unauthorized")
	}
	return presenter.OK(c, echo.Map{"user": user})
}

func (h *Handler) handleList(c echo.Context) error {
	ctx := c.Request().Context()

	actor, ok := middleware.ActorFrom(ctx)
	if !ok {
		return presenter.Unauthorized(c, "unauthorized")
	}

	q := domain.ListQuery{
		Search:  c.QueryParam("q"),
		SortKey: c.QueryParam("sort"),
		Order:   c.QueryParam("order"),
	}
	if page, err := strconv.Atoi(c.QueryParam("page")); err == nil {
		q.Page = page
	}
	if limit, err := strconv.Atoi(c.QueryParam("limit")); err == nil {
		q.Limit = limit
	}

	items, total, err := h.shipments.List(ctx, actor, q)
	if err != nil {
		return presenter.FromError(c, err)
	}

	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 25
	}
	return presenter.OK(c, echo.Map{
		"items": h.ordered(items),
		"total": total,
		"page":  q.Page,
		"limit": q.Limit,
	})
}

func (h *Handler) handleGet(c echo.Context) error {
	ctx := c.Request().Context()

	actor, ok := middleware.ActorFrom(ctx)
	if !ok {
		return presenter.Unauthorized(c, "unauthorized")
	}

	item, err := h.shipments.Get(ctx, actor, c.Param("id"))
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, echo.Map{"item": h.orderedItem(item)})
}

func (h *Handler) handleCreate(c echo.Context) error {
	ctx := c.Request().Context()

	actor, ok := middleware.ActorFrom(ctx)
	if !ok {
		return presenter.Unauthorized(c, "unauthorized")
	}

	var payload map[string]any
	if err := c.Bind(&payload); err != nil {
		return presenter.BadRequest(c, "invalid request body")
	}

	item, err := h.shipments.Create(ctx, actor, payload)
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.Created(c, echo.Map{"item": h.orderedItem(item)})
}

func (h *Handler) handleUpdate(c echo.Context) error {
	ctx := c.Request().Context()

	actor, ok := middleware.ActorFrom(ctx)
	if !ok {
		return presenter.Unauthorized(c, "unauthorized")
	}

	var payload map[string]any
	if err := c.Bind(&payload); err != nil {
		return presenter.BadRequest(c, "invalid request body")
	}

	version := intValue(payload["version"])
	delete(payload, "version")

	item, err := h.shipments.Update(ctx, actor, c.Param("id"), version, payload)
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, echo.Map{"item": h.orderedItem(item)})
}

type bulkRequest struct {
	IDs      []string       `json:"ids"`
	Patch    map[string]any `json:"patch"`
	Versions map[string]any `json:"versions"`
}

func (h *Handler) handleBulkUpdate(c echo.Context) error {
	ctx := c.Request().Context()

	actor, ok := middleware.ActorFrom(ctx)
	if !ok {
		return presenter.Unauthorized(c, "unauthorized")
	}

	var req bulkRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, "invalid request body")
	}

	// A version entry that is not an integer counts as absent: that id falls
	// through to the unconditional path rather than failing the request.
	versions := make(map[string]int64, len(req.Versions))
	for id, raw := range req.Versions {
		if v := intValue(raw); v != nil {
			versions[id] = *v
		}
	}

	outcomes, err := h.shipments.BulkUpdate(ctx, actor, req.IDs, req.Patch, versions)
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, echo.Map{"results": outcomes})
}

func (h *Handler) handleDelete(c echo.Context) error {
	ctx := c.Request().Context()

	actor, ok := middleware.ActorFrom(ctx)
	if !ok {
		return presenter.Unauthorized(c, "unauthorized")
	}

	if err := h.shipments.SoftDelete(ctx, actor, c.Param("id")); err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, echo.Map{"ok": true})
}

type presenceRequest struct {
	ShipmentID string `json:"shipmentId"`
}

func (h *Handler) handlePresenceBegin(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c.Request().Context())
	if !ok {
		return presenter.Unauthorized(c, "unauthorized")
	}

	var req presenceRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, "invalid request body")
	}
	if req.ShipmentID == "" {
		return presenter.BadRequest(c, "missing shipmentId")
	}

	h.presence.Begin(req.ShipmentID, tracker.Editor{
		UserID:      actor.ID,
		DisplayName: actor.DisplayName,
		Role:        actor.Role,
	})
	return presenter.OK(c, echo.Map{"ok": true})
}

func (h *Handler) handlePresenceEnd(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c.Request().Context())
	if !ok {
		return presenter.Unauthorized(c, "unauthorized")
	}

	var req presenceRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, "invalid request body")
	}
	if req.ShipmentID == "" {
		return presenter.BadRequest(c, "missing shipmentId")
	}

	h.presence.End(req.ShipmentID, actor.ID)
	return presenter.OK(c, echo.Map{"ok": true})
}

// ordered re-keys projected items so JSON field order follows the catalog.
func (h *Handler) ordered(items []map[string]any) []utils.OrderedKVMap[any] {
	out := make([]utils.OrderedKVMap[any], 0, len(items))
	for _, item := range items {
		out = append(out, h.orderedItem(item))
	}
	return out
}

func (h *Handler) orderedItem(item map[string]any) utils.OrderedKVMap[any] {
	om := make(utils.OrderedKVMap[any], len(item))
	for key, value := range item {
		om[key] = utils.OrderedKV[any]{Value: value, Order: h.fieldOrder[key]}
	}
	return om
}

// intValue accepts the JSON representations a version may arrive in. A
// fractional number or arbitrary string is not a version.
func intValue(raw any) *int64 {
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return nil
		}
		value := int64(v)
		return &value
	case string:
		value, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil
		}
		return &value
	default:
		return nil
	}
}
