// Package manager implements the Manager ingress (spec §4.3): a one-shot
// request/response that validates a client request, probes the seed, and
// plants a ROOT node. It never seeds children itself; the first Feeder to
// claim the ROOT does that.
package manager

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"time"

	"github.com/labstack/echo"

	"github.com/bluedotiya/web-crawler/internal/model"
	"github.com/bluedotiya/web-crawler/internal/probe"
	"github.com/bluedotiya/web-crawler/internal/store"
)

// Handler is the api.Handler for the crawl ingress endpoint.
type Handler struct {
	Store    store.Graph
	Fetcher  *probe.Fetcher
	Resolver probe.Resolver
}

// jobRequest is the client-submitted schema from spec §6.
type jobRequest struct {
	URL   string `json:"url"`
	Depth int    `json:"depth"`
	Mode  string `json:"mode"`
}

// hasContentType determines if the request carries the given content type,
// matching the teacher's mime.ParseMediaType check.
func hasContentType(r *http.Request, mimetype string) (bool, error) {
	t, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false, err
	}
	return t == mimetype, nil
}

// CreateJobHandler implements POST / (spec §6): it runs the Manager's
// six-step flow and returns the documented 200/400/404 responses.
func (h *Handler) CreateJobHandler(ctx echo.Context) error {
	isJSON, err := hasContentType(ctx.Request(), "application/json")
	if err != nil || !isJSON {
		return ctx.JSON(http.StatusBadRequest, echo.Map{"Error": "Only json data is allowed"})
	}

	var req jobRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, echo.Map{"Error": err.Error()})
	}

	if req.URL == "" || req.Depth < 1 || !model.SearchMode(req.Mode).Valid() {
		return ctx.JSON(http.StatusBadRequest, echo.Map{"Error": "invalid url, depth, or mode"})
	}

	rootName, scheme := probe.Normalize(req.URL)
	mode := model.SearchMode(req.Mode)

	timeout := probe.AttemptTimeout(0)
	if _, err := h.Fetcher.Fetch(ctx.Request().Context(), req.URL, timeout); err != nil {
		return ctx.JSON(http.StatusNotFound, echo.Map{"Error": "Requested URL was not found"})
	}

	key := model.Key{Name: rootName, RequestedDepth: req.Depth, SearchMode: mode}
	_, err = h.Store.MatchByKey(ctx.Request().Context(), key)
	if err == nil {
		return ctx.JSON(http.StatusOK, echo.Map{"Info": "requested url was already searched"})
	}
	if !errors.Is(err, store.ErrNotFound) {
		return ctx.JSON(http.StatusInternalServerError, echo.Map{"Error": err.Error()})
	}

	resolution, ok := probe.Resolve(ctx.Request().Context(), h.resolver(), rootName)

	root := &model.Node{
		Label:          model.LabelRoot,
		Name:           rootName,
		HTTPType:       model.HTTPType(scheme),
		RequestedDepth: req.Depth,
		CurrentDepth:   0,
		JobStatus:      model.Pending,
		Attempts:       0,
		SearchMode:     mode,
	}
	if ok {
		root.Domain = resolution.Domain
		root.IP = resolution.IPv4
	}

	if err := h.Store.CreateNode(ctx.Request().Context(), root); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return ctx.JSON(http.StatusOK, echo.Map{"Info": "requested url was already searched"})
		}
		return ctx.JSON(http.StatusInternalServerError, echo.Map{"Error": err.Error()})
	}

	return ctx.JSON(http.StatusOK, echo.Map{"Success": "Job started"})
}

func (h *Handler) resolver() probe.Resolver {
	if h.Resolver != nil {
		return h.Resolver
	}
	return probe.SystemResolver()
}

// HealthHandler exposes the adapter's health_check for operational probes;
// not part of the spec's wire contract but useful for orchestration.
func (h *Handler) HealthHandler(ctx echo.Context) error {
	c, cancel := context.WithTimeout(ctx.Request().Context(), 2*time.Second)
	defer cancel()

	if err := h.Store.HealthCheck(c); err != nil {
		return ctx.JSON(http.StatusServiceUnavailable, echo.Map{"Error": err.Error()})
	}
	return ctx.NoContent(http.StatusNoContent)
}
