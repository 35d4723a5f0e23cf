// Package waitlist records pre-launch sign-ups as spreadsheet rows.
package waitlist

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const RunningText = "LeaseLink Waitlist API is running"

var (
	errEmailRequired      = errors.New("Email is required")
	errUnsupportedPayload = errors.New("unsupported content type")
	errNoData             = errors.New("No data received")
)

// Appender stores one [timestamp, email] row.
type Appender interface {
	AppendRow(ctx context.Context, row []string) error
}

// Options select which payload formats are parsed and how replies are shaped.
type Options struct {
	AcceptJSON bool
	AcceptForm bool
	EmitCORS   bool
	PlainText  bool
}

type Handler struct {
	sink Appender
	opts Options
	now  func() time.Time
}

func New(sink Appender, opts Options) *Handler {
	return &Handler{sink: sink, opts: opts, now: time.Now}
}

type signup struct {
	Email     string `json:"email"`
	Timestamp string `json:"timestamp"`
}

type result struct {
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
}

// Register mounts GET, POST and OPTIONS on the root path.
func (h *Handler) Register(e *echo.Echo) {
	var mw []echo.MiddlewareFunc
	if h.opts.EmitCORS {
		mw = append(mw, middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{http.MethodPost, http.MethodGet, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderContentType},
		}))
	}
	g := e.Group("", mw...)
	g.GET("/", h.Status)
	g.POST("/", h.Submit)
	g.OPTIONS("/", h.Preflight)
}

func (h *Handler) Status(c echo.Context) error {
	return c.String(http.StatusOK, RunningText)
}

func (h *Handler) Preflight(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Submit(c echo.Context) error {
	in, err := h.parse(c)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errUnsupportedPayload) {
			status = http.StatusUnsupportedMediaType
		}
		return h.fail(c, status, err)
	}
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return h.fail(c, http.StatusBadRequest, errEmailRequired)
	}
	ts := strings.TrimSpace(in.Timestamp)
	if ts == "" {
		ts = h.now().UTC().Format(time.RFC3339)
	}
	if err := h.sink.AppendRow(c.Request().Context(), []string{ts, email}); err != nil {
		log.Printf("[waitlist] append failed err=%v", err)
		return h.fail(c, http.StatusBadGateway, err)
	}
	if h.opts.PlainText {
		return c.String(http.StatusOK, "Success")
	}
	return c.JSON(http.StatusOK, result{Result: "success"})
}

func (h *Handler) parse(c echo.Context) (signup, error) {
	var in signup
	ct := strings.ToLower(c.Request().Header.Get(echo.HeaderContentType))
	isForm := strings.HasPrefix(ct, echo.MIMEApplicationForm) || strings.HasPrefix(ct, echo.MIMEMultipartForm)
	switch {
	case isForm && h.opts.AcceptForm:
		in.Email = c.FormValue("email")
		in.Timestamp = c.FormValue("timestamp")
		return in, nil
	case isForm:
		return in, errUnsupportedPayload
	case h.opts.AcceptJSON:
		// text/plain bodies are accepted too: browsers send them without a preflight.
		if ct != "" && !strings.HasPrefix(ct, echo.MIMEApplicationJSON) && !strings.HasPrefix(ct, echo.MIMETextPlain) {
			return in, errUnsupportedPayload
		}
		if body := c.Request().Body; body == nil || body == http.NoBody || c.Request().ContentLength == 0 {
			if h.opts.AcceptForm {
				return queryParams(c), nil
			}
			return in, errNoData
		}
		if err := json.NewDecoder(c.Request().Body).Decode(&in); err != nil {
			return in, errors.New("invalid JSON body")
		}
		return in, nil
	case h.opts.AcceptForm:
		return queryParams(c), nil
	}
	return in, errUnsupportedPayload
}

func queryParams(c echo.Context) signup {
	return signup{Email: c.QueryParam("email"), Timestamp: c.QueryParam("timestamp")}
}

func (h *Handler) fail(c echo.Context, status int, err error) error {
	if h.opts.PlainText {
		if errors.Is(err, errEmailRequired) {
			return c.String(status, errEmailRequired.Error())
		}
		return c.String(status, "Error: "+err.Error())
	}
	return c.JSON(status, result{Result: "error", Error: err.Error()})
}
