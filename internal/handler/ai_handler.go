package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/leaselink-backend/internal/ai"
	"github.com/shinyyama/leaselink-backend/internal/model"
	"github.com/shinyyama/leaselink-backend/internal/reqctx"
	"github.com/shinyyama/leaselink-backend/internal/service"
)

// Asker answers a free-form question about a listing.
type Asker interface {
	Ask(ctx context.Context, listing model.Listing, question string) (string, error)
}

type AIHandler struct {
	listings service.ListingService
	asker    Asker
}

// NewAIHandler wires the listing assistant; asker may be nil when no API key is configured.
func NewAIHandler(listings service.ListingService, asker Asker) *AIHandler {
	return &AIHandler{listings: listings, asker: asker}
}

type askRequest struct {
	Question string `json:"question"`
}

func (h *AIHandler) AskListing(c echo.Context) error {
	if h.asker == nil {
		return c.JSON(http.StatusServiceUnavailable, NewErrorResponse("unavailable", "AI assistant is not configured"))
	}
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid listing id"))
	}
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	ctx := reqctx.WithListingID(c.Request().Context(), id)
	listing, err := h.listings.Get(ctx, id)
	if err != nil {
		return serviceError(c, err, "listing not found", "failed to fetch listing")
	}
	if listing.OwnerUID == uid {
		return c.JSON(http.StatusForbidden, NewErrorResponse("forbidden", "cannot ask about own listing"))
	}
	answer, err := h.asker.Ask(ctx, *listing, req.Question)
	if err != nil {
		if errors.Is(err, ai.ErrInvalidQuestion) {
			return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", err.Error()))
		}
		log.Printf("[ask] rid=%s listing=%d err=%v", reqctx.RID(ctx), id, err)
		return c.JSON(http.StatusBadGateway, NewErrorResponse("upstream_error", "failed to generate answer"))
	}
	return c.JSON(http.StatusOK, map[string]string{"answer": answer})
}
