package handler

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/leaselink-backend/internal/geo"
	"github.com/shinyyama/leaselink-backend/internal/model"
	"github.com/shinyyama/leaselink-backend/internal/service"
)

const dateLayout = "2006-01-02"

type ListingHandler struct {
	svc       service.ListingService
	favorites service.FavoriteService
}

func NewListingHandler(svc service.ListingService, favorites service.FavoriteService) *ListingHandler {
	return &ListingHandler{svc: svc, favorites: favorites}
}

type ListingResponse struct {
	ID               uint64   `json:"id"`
	Title            string   `json:"title"`
	Location         string   `json:"location"`
	Latitude         *float64 `json:"lat"`
	Longitude        *float64 `json:"lng"`
	Rent             float64  `json:"rent"`
	Description      string   `json:"description"`
	GenderPreference string   `json:"genderPreference"`
	AvailableFrom    string   `json:"availableFrom"`
	AvailableTo      *string  `json:"availableTo"`
	OwnerID          string   `json:"userId"`
	Images           []string `json:"images"`
	// Distance is in kilometres and omitted when either side has no coordinates.
	Distance   *float64 `json:"distance,omitempty"`
	IsFavorite bool     `json:"isFavorite"`
	CreatedAt  string   `json:"createdAt"`
	UpdatedAt  string   `json:"updatedAt"`
}

type ListingRequest struct {
	Title            string   `json:"title"`
	Location         string   `json:"location"`
	Description      string   `json:"description"`
	Latitude         *float64 `json:"lat"`
	Longitude        *float64 `json:"lng"`
	Rent             float64  `json:"rent"`
	GenderPreference string   `json:"genderPreference"`
	AvailableFrom    string   `json:"availableFrom"`
	AvailableTo      string   `json:"availableTo"`
	Images           []string `json:"images"`
}

func (r ListingRequest) toInput() (service.ListingInput, error) {
	in := service.ListingInput{
		Title:            r.Title,
		Location:         r.Location,
		Description:      r.Description,
		Latitude:         r.Latitude,
		Longitude:        r.Longitude,
		Rent:             r.Rent,
		GenderPreference: r.GenderPreference,
		Images:           r.Images,
	}
	var err error
	if in.AvailableFrom, err = parseDate(r.AvailableFrom); err != nil {
		return in, errors.New("invalid availableFrom")
	}
	if in.AvailableTo, err = parseDate(r.AvailableTo); err != nil {
		return in, errors.New("invalid availableTo")
	}
	return in, nil
}

// parseDate accepts a calendar date or an RFC 3339 timestamp; empty means unset.
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (h *ListingHandler) Create(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	var req ListingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	in, err := req.toInput()
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", err.Error()))
	}
	listing, err := h.svc.Create(c.Request().Context(), uid, in)
	if err != nil {
		return serviceError(c, err, "listing not found", "failed to create listing")
	}
	return c.JSON(http.StatusCreated, toListingResponse(listing, nil, false))
}

func (h *ListingHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid id"))
	}
	listing, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return serviceError(c, err, "listing not found", "failed to fetch listing")
	}
	fav := false
	if uid := currentUID(c); uid != "" && h.favorites != nil {
		ids, err := h.favorites.IDs(c.Request().Context(), uid)
		if err == nil {
			fav = ids[id]
		}
	}
	return c.JSON(http.StatusOK, toListingResponse(listing, nil, fav))
}

// List returns every listing; with lat and lng the result is ordered nearest first.
func (h *ListingHandler) List(c echo.Context) error {
	ref, err := referencePoint(c.QueryParam("lat"), c.QueryParam("lng"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", err.Error()))
	}
	ctx := c.Request().Context()
	ranked, err := h.svc.List(ctx, ref)
	if err != nil {
		return serviceError(c, err, "listing not found", "failed to fetch listings")
	}
	favs := map[uint64]bool{}
	if uid := currentUID(c); uid != "" && h.favorites != nil {
		if favs, err = h.favorites.IDs(ctx, uid); err != nil {
			return serviceError(c, err, "listing not found", "failed to fetch favorites")
		}
	}
	resp := make([]ListingResponse, 0, len(ranked))
	for i := range ranked {
		var dist *float64
		if ranked[i].HasDistance() {
			d := ranked[i].Distance
			dist = &d
		}
		resp = append(resp, toListingResponse(&ranked[i].Record, dist, favs[ranked[i].Record.ID]))
	}
	return c.JSON(http.StatusOK, resp)
}

func referencePoint(latStr, lngStr string) (*geo.Point, error) {
	if latStr == "" && lngStr == "" {
		return nil, nil
	}
	if latStr == "" || lngStr == "" {
		return nil, errors.New("lat and lng must be given together")
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		return nil, errors.New("invalid lat")
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil || lng < -180 || lng > 180 {
		return nil, errors.New("invalid lng")
	}
	return &geo.Point{Lat: lat, Lng: lng}, nil
}

func (h *ListingHandler) ListMine(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	ctx := c.Request().Context()
	list, err := h.svc.ListMine(ctx, uid)
	if err != nil {
		return serviceError(c, err, "listing not found", "failed to fetch listings")
	}
	favs := map[uint64]bool{}
	if h.favorites != nil {
		if ids, err := h.favorites.IDs(ctx, uid); err == nil {
			favs = ids
		}
	}
	return c.JSON(http.StatusOK, toListingResponses(list, favs))
}

func (h *ListingHandler) Update(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid id"))
	}
	var req ListingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	in, err := req.toInput()
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", err.Error()))
	}
	listing, err := h.svc.Update(c.Request().Context(), uid, id, in)
	if err != nil {
		return serviceError(c, err, "listing not found", "failed to update listing")
	}
	return c.JSON(http.StatusOK, toListingResponse(listing, nil, false))
}

func (h *ListingHandler) Delete(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid id"))
	}
	if err := h.svc.Delete(c.Request().Context(), uid, id); err != nil {
		return serviceError(c, err, "listing not found", "failed to delete listing")
	}
	return c.NoContent(http.StatusNoContent)
}

// UploadImages stores the multipart "images" files and returns their public URLs in order.
func (h *ListingHandler) UploadImages(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "multipart form required"))
	}
	uploads, closeAll, err := openUploads(form.File["images"])
	defer closeAll()
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "failed to read upload"))
	}
	urls, err := h.svc.UploadImages(c.Request().Context(), uid, uploads)
	if err != nil {
		return serviceError(c, err, "listing not found", "failed to upload images")
	}
	return c.JSON(http.StatusCreated, map[string][]string{"urls": urls})
}

func openUploads(headers []*multipart.FileHeader) ([]service.Upload, func(), error) {
	var files []multipart.File
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}
	uploads := make([]service.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, err
		}
		files = append(files, f)
		uploads = append(uploads, service.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(echo.HeaderContentType),
			Body:        f,
		})
	}
	return uploads, closeAll, nil
}

func toListingResponses(list []model.Listing, favs map[uint64]bool) []ListingResponse {
	resp := make([]ListingResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toListingResponse(&list[i], nil, favs[list[i].ID]))
	}
	return resp
}

func toListingResponse(l *model.Listing, distance *float64, favorite bool) ListingResponse {
	var to *string
	if l.AvailableTo != nil {
		s := l.AvailableTo.Format(dateLayout)
		to = &s
	}
	return ListingResponse{
		ID:               l.ID,
		Title:            l.Title,
		Location:         l.Location,
		Latitude:         l.Latitude,
		Longitude:        l.Longitude,
		Rent:             l.Rent,
		Description:      l.Description,
		GenderPreference: string(l.GenderPreference),
		AvailableFrom:    l.AvailableFrom.Format(dateLayout),
		AvailableTo:      to,
		OwnerID:          l.OwnerUID,
		Images:           l.ImageURLs(),
		Distance:         distance,
		IsFavorite:       favorite,
		CreatedAt:        l.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        l.UpdatedAt.Format(time.RFC3339),
	}
}
