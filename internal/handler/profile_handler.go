package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/leaselink-backend/internal/model"
	"github.com/shinyyama/leaselink-backend/internal/service"
)

type ProfileHandler struct {
	svc service.ProfileService
}

func NewProfileHandler(svc service.ProfileService) *ProfileHandler {
	return &ProfileHandler{svc: svc}
}

type ProfileResponse struct {
	UID             string  `json:"id"`
	Name            string  `json:"name"`
	Age             int     `json:"age"`
	Gender          string  `json:"gender"`
	ProfileImageURL *string `json:"profileImageUrl"`
}

type UpdateProfileRequest struct {
	Name   *string `json:"name"`
	Age    *int    `json:"age"`
	Gender *string `json:"gender"`
}

func toProfileResponse(p *model.Profile) ProfileResponse {
	return ProfileResponse{
		UID:             p.UID,
		Name:            p.Name,
		Age:             p.Age,
		Gender:          p.Gender,
		ProfileImageURL: p.ProfileImageURL,
	}
}

func (h *ProfileHandler) GetPublic(c echo.Context) error {
	uid := c.Param("uid")
	if uid == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid uid"))
	}
	p, err := h.svc.Get(c.Request().Context(), uid)
	if err != nil {
		return serviceError(c, err, "user not found", "failed to fetch profile")
	}
	return c.JSON(http.StatusOK, toProfileResponse(p))
}

func (h *ProfileHandler) Me(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	p, err := h.svc.Me(c.Request().Context(), uid)
	if err != nil {
		return serviceError(c, err, "profile not found", "failed to fetch profile")
	}
	return c.JSON(http.StatusOK, toProfileResponse(p))
}

func (h *ProfileHandler) Update(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	var req UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	p, err := h.svc.Update(c.Request().Context(), uid, service.ProfileInput{
		Name:   req.Name,
		Age:    req.Age,
		Gender: req.Gender,
	})
	if err != nil {
		return serviceError(c, err, "profile not found", "failed to update profile")
	}
	return c.JSON(http.StatusOK, toProfileResponse(p))
}

// UploadImage replaces the caller's profile photo with the multipart "image" file.
func (h *ProfileHandler) UploadImage(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	fh, err := c.FormFile("image")
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "image file required"))
	}
	f, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "failed to read upload"))
	}
	defer f.Close()
	p, err := h.svc.UploadImage(c.Request().Context(), uid, service.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Body:        f,
	})
	if err != nil {
		return serviceError(c, err, "profile not found", "failed to upload image")
	}
	return c.JSON(http.StatusOK, toProfileResponse(p))
}

// DeleteAccount removes the caller's listings, favorites and profile. The identity
// itself stays with the identity provider.
func (h *ProfileHandler) DeleteAccount(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	if err := h.svc.DeleteAccount(c.Request().Context(), uid); err != nil {
		return serviceError(c, err, "profile not found", "failed to delete account")
	}
	return c.NoContent(http.StatusNoContent)
}
