package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/leaselink-backend/internal/service"
)

type FavoriteHandler struct {
	svc service.FavoriteService
}

func NewFavoriteHandler(svc service.FavoriteService) *FavoriteHandler {
	return &FavoriteHandler{svc: svc}
}

func (h *FavoriteHandler) Toggle(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid id"))
	}
	fav, err := h.svc.Toggle(c.Request().Context(), uid, id)
	if err != nil {
		return serviceError(c, err, "listing not found", "failed to update favorite")
	}
	return c.JSON(http.StatusOK, map[string]bool{"isFavorite": fav})
}

func (h *FavoriteHandler) Remove(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid id"))
	}
	if err := h.svc.Remove(c.Request().Context(), uid, id); err != nil {
		return serviceError(c, err, "listing not found", "failed to remove favorite")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *FavoriteHandler) List(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	list, err := h.svc.List(c.Request().Context(), uid)
	if err != nil {
		return serviceError(c, err, "listing not found", "failed to fetch favorites")
	}
	resp := make([]ListingResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toListingResponse(&list[i], nil, true))
	}
	return c.JSON(http.StatusOK, resp)
}
