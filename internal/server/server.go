package server

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/shinyyama/leaselink-backend/internal/handler"
	appmw "github.com/shinyyama/leaselink-backend/internal/middleware"
	"github.com/shinyyama/leaselink-backend/internal/repository"
	"github.com/shinyyama/leaselink-backend/internal/service"
	"gorm.io/gorm"
)

// Deps carries the optional backends wired by cmd/api. Nil fields disable the
// features that need them.
type Deps struct {
	DB       *gorm.DB
	Auth     *appmw.AuthMiddleware
	Identity service.IdentityLookup
	Cache    service.ListingCache
	Images   service.ImageStore
	Hub      Hub
	Asker    handler.Asker

	// AccessLog receives the request log; nil means stdout.
	AccessLog io.Writer

	CORSOriginSuffixes []string
	GitSHA             string
	BuildTime          string
}

// Hub is the push channel: it fans stored messages out and serves stream connections.
type Hub interface {
	service.MessagePublisher
	handler.Streamer
}

// accessLogFormat is echo's default line with the path in place of the full URI,
// so the stream's ?token= never reaches the log.
const accessLogFormat = `{"time":"${time_rfc3339_nano}","id":"${id}","remote_ip":"${remote_ip}",` +
	`"host":"${host}","method":"${method}","path":"${path}","user_agent":"${user_agent}",` +
	`"status":${status},"error":"${error}","latency":${latency},"latency_human":"${latency_human}"` +
	`,"bytes_in":${bytes_in},"bytes_out":${bytes_out}}` + "\n"

type Server struct {
	e *echo.Echo
}

func New(d Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(appmw.RequestContext)
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: accessLogFormat,
		Output: d.AccessLog,
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		AllowOriginFunc:  OriginAllowed(d.CORSOriginSuffixes),
	}))

	listingRepo := repository.NewListingRepository(d.DB)
	profileRepo := repository.NewProfileRepository(d.DB)
	favoriteRepo := repository.NewFavoriteRepository(d.DB)
	chatRepo := repository.NewChatRepository(d.DB)
	notificationRepo := repository.NewNotificationRepository(d.DB)

	var publisher service.MessagePublisher
	var streamer handler.Streamer
	if d.Hub != nil {
		publisher, streamer = d.Hub, d.Hub
	}

	listingSvc := service.NewListingService(listingRepo, d.Cache, d.Images)
	favoriteSvc := service.NewFavoriteService(favoriteRepo, listingRepo)
	notificationSvc := service.NewNotificationService(notificationRepo)
	chatSvc := service.NewChatService(chatRepo, listingRepo, profileRepo, notificationSvc, publisher)
	profileSvc := service.NewProfileService(profileRepo, listingRepo, favoriteRepo, notificationRepo, d.Identity, d.Images, d.Cache)

	listingHandler := handler.NewListingHandler(listingSvc, favoriteSvc)
	favoriteHandler := handler.NewFavoriteHandler(favoriteSvc)
	chatHandler := handler.NewChatHandler(chatSvc, streamer)
	profileHandler := handler.NewProfileHandler(profileSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	aiHandler := handler.NewAIHandler(listingSvc, d.Asker)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"ok":         "true",
			"git_sha":    d.GitSHA,
			"build_time": d.BuildTime,
		})
	})

	required, optional := passThrough, passThrough
	if d.Auth != nil {
		required, optional = d.Auth.RequireAuth, d.Auth.OptionalAuth
	} else {
		e.Logger.Warn("auth middleware not configured; protected routes reply 401")
	}

	api := e.Group("/api")
	api.GET("/listings", listingHandler.List, optional)
	api.GET("/listings/:id", listingHandler.Get, optional)
	api.POST("/listings", listingHandler.Create, required)
	api.PUT("/listings/:id", listingHandler.Update, required)
	api.DELETE("/listings/:id", listingHandler.Delete, required)
	api.POST("/uploads/listing-images", listingHandler.UploadImages, required)
	api.GET("/me/listings", listingHandler.ListMine, required)

	api.POST("/listings/:id/favorite", favoriteHandler.Toggle, required)
	api.DELETE("/listings/:id/favorite", favoriteHandler.Remove, required)
	api.GET("/me/favorites", favoriteHandler.List, required)

	api.POST("/listings/:id/contact", chatHandler.Contact, required)
	api.POST("/listings/:id/ask", aiHandler.AskListing, required)

	api.GET("/me/profile", profileHandler.Me, required)
	api.PUT("/me/profile", profileHandler.Update, required)
	api.POST("/me/profile/image", profileHandler.UploadImage, required)
	api.DELETE("/me", profileHandler.DeleteAccount, required)
	api.GET("/profiles/:uid", profileHandler.GetPublic)

	api.GET("/chats", chatHandler.List, required)
	api.GET("/chats/:id", chatHandler.Get, required)
	api.GET("/chats/:id/messages", chatHandler.Messages, required)
	api.POST("/chats/:id/messages", chatHandler.Send, required)
	api.POST("/chats/:id/read", chatHandler.MarkRead, required)
	api.GET("/chats/:id/stream", chatHandler.Stream, required)

	api.GET("/notifications", notificationHandler.List, required)
	api.POST("/notifications/read", notificationHandler.MarkAllRead, required)

	return &Server{e: e}
}

// passThrough leaves the uid unset, so handlers behind it treat every caller as anonymous.
func passThrough(next echo.HandlerFunc) echo.HandlerFunc {
	return next
}

// OriginAllowed accepts localhost origins and hosts equal to, or subdomains of, one of suffixes.
func OriginAllowed(suffixes []string) func(string) (bool, error) {
	return func(origin string) (bool, error) {
		low := strings.ToLower(origin)
		if strings.HasPrefix(low, "http://localhost:") || strings.HasPrefix(low, "http://127.0.0.1:") ||
			strings.HasPrefix(low, "https://localhost:") || strings.HasPrefix(low, "https://127.0.0.1:") {
			return true, nil
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false, nil
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return false, nil
		}
		host := u.Hostname()
		for _, s := range suffixes {
			s = strings.TrimPrefix(strings.ToLower(s), ".")
			if s != "" && (host == s || strings.HasSuffix(host, "."+s)) {
				return true, nil
			}
		}
		return false, nil
	}
}

func (s *Server) Handler() http.Handler {
	return s.e
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}
