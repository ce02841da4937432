// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/nyasabox/nyasabox-api/internal/cache"
	"github.com/nyasabox/nyasabox-api/internal/config"
	"github.com/nyasabox/nyasabox-api/internal/handlers"
	"github.com/nyasabox/nyasabox-api/internal/metrics"
	"github.com/nyasabox/nyasabox-api/internal/middleware"
	"github.com/nyasabox/nyasabox-api/internal/services"
	"github.com/nyasabox/nyasabox-api/pkg/events"
)

// Dependencies are the external collaborators built by the caller.
// Operators, Publisher and Metrics may be nil.
type Dependencies struct {
	Gateway   services.PaymentGateway
	Operators *cache.OperatorCache
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
}

type Services struct {
	Notification  *services.NotificationService
	Storage       *services.StorageService
	Authorization *services.AuthorizationService
	Auth          *services.AuthService
	User          *services.UserService
	Catalog       *services.CatalogService
	Comment       *services.CommentService
	Blog          *services.BlogService
	Distribution  *services.DistributionService
	Payment       *services.PaymentService
	Admin         *services.AdminService
}

func BuildServices(db *gorm.DB, cfg *config.Config, deps Dependencies) (*Services, error) {
	unitPrice, err := cfg.Distribution.UnitPrice()
	if err != nil {
		return nil, err
	}

	storageService, err := services.NewStorageService(cfg)
	if err != nil {
		return nil, err
	}

	notificationService := services.NewNotificationService(db, cfg)
	distributionService := services.NewDistributionService(db, services.NewPricingCalculator(unitPrice), notificationService, deps.Publisher, deps.Metrics)

	return &Services{
		Notification:  notificationService,
		Storage:       storageService,
		Authorization: services.NewAuthorizationService(db),
		Auth:          services.NewAuthService(db, cfg, notificationService),
		User:          services.NewUserService(db, storageService, notificationService),
		Catalog:       services.NewCatalogService(db, storageService),
		Comment:       services.NewCommentService(db),
		Blog:          services.NewBlogService(db),
		Distribution:  distributionService,
		Payment:       services.NewPaymentService(db, cfg.Payment, deps.Gateway, distributionService, deps.Operators),
		Admin:         services.NewAdminService(db, notificationService),
	}, nil
}

func Initialize(db *gorm.DB, cfg *config.Config, svc *Services, gatherer prometheus.Gatherer) *gin.Engine {
	// Initialize handlers
	authHandler := handlers.NewAuthHandler(svc.Auth)
	userHandler := handlers.NewUserHandler(svc.User)
	catalogHandler := handlers.NewCatalogHandler(svc.Catalog)
	commentHandler := handlers.NewCommentHandler(svc.Comment)
	blogHandler := handlers.NewBlogHandler(svc.Blog)
	distributionHandler := handlers.NewDistributionHandler(svc.Distribution, svc.Payment)
	paymentHandler := handlers.NewPaymentHandler(svc.Payment)
	adminHandler := handlers.NewAdminHandler(svc.Admin, svc.Distribution)

	limit := func(limiter func() gin.HandlerFunc) gin.HandlerFunc {
		if !cfg.Server.RateLimit {
			return func(c *gin.Context) { c.Next() }
		}
		return limiter()
	}
	identity := middleware.IdentityRequired(svc.Authorization)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	r.Use(middleware.I18nMiddleware(cfg.I18n.DefaultLocale))
	r.Use(limit(middleware.GeneralRateLimit))
	r.Use(middleware.AuditLogMiddleware(db))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(limit(middleware.AuthRateLimit))
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/forgot-password", authHandler.ForgotPassword)
			auth.POST("/reset-password", authHandler.ResetPassword)
			auth.GET("/me", middleware.AuthRequired(), authHandler.GetProfile)
		}

		// User routes
		users := v1.Group("/users")
		{
			users.GET("/:id/public", userHandler.GetPublicProfile)

			// Authenticated user routes
			protected := users.Group("")
			protected.Use(middleware.AuthRequired(), identity)
			{
				protected.PUT("/profile", userHandler.UpdateProfile)
				protected.PUT("/password", userHandler.ChangePassword)
				protected.GET("/uploads", catalogHandler.MyUploads)
				protected.POST("/upload-avatar", limit(middleware.UploadRateLimit), userHandler.UploadAvatar)
				protected.POST("/artist-application", userHandler.ApplyForArtist)
				protected.DELETE("/account", userHandler.DeleteAccount)
			}
		}

		// Catalog routes
		tracks := v1.Group("/tracks")
		{
			tracks.GET("", middleware.OptionalAuth(), catalogHandler.ListTracks)
			tracks.GET("/:id", middleware.OptionalAuth(), catalogHandler.GetTrack)
			tracks.GET("/:id/download", catalogHandler.DownloadTrack)
			tracks.GET("/:id/comments", commentHandler.List(services.TrackTarget, "track"))
			tracks.POST("", middleware.AuthRequired(), identity, limit(middleware.UploadRateLimit), catalogHandler.CreateTrack)

			owned := tracks.Group("")
			owned.Use(middleware.AuthRequired(), identity)
			{
				owned.PUT("/:id", catalogHandler.UpdateTrack)
				owned.DELETE("/:id", catalogHandler.DeleteTrack)
				owned.POST("/:id/like", catalogHandler.LikeTrack)
				owned.POST("/:id/comments", commentHandler.Create(services.TrackTarget, "track"))
			}
		}

		albums := v1.Group("/albums")
		{
			albums.GET("", middleware.OptionalAuth(), catalogHandler.ListAlbums)
			albums.GET("/:id", middleware.OptionalAuth(), catalogHandler.GetAlbum)
			albums.GET("/:id/comments", commentHandler.List(services.AlbumTarget, "album"))

			owned := albums.Group("")
			owned.Use(middleware.AuthRequired(), identity)
			{
				owned.POST("", catalogHandler.CreateAlbum)
				owned.PUT("/:id", catalogHandler.UpdateAlbum)
				owned.DELETE("/:id", catalogHandler.DeleteAlbum)
				owned.POST("/:id/comments", commentHandler.Create(services.AlbumTarget, "album"))
			}
		}

		v1.DELETE("/comments/:id", middleware.AuthRequired(), identity, commentHandler.Delete)

		// Blog routes
		blog := v1.Group("/blog")
		{
			blog.GET("/categories", blogHandler.ListCategories)
			blog.GET("/posts", blogHandler.ListPosts)
			blog.GET("/posts/:slug", blogHandler.GetPost)
		}

		// Distribution routes
		distribution := v1.Group("/distribution")
		{
			distribution.GET("/platforms", distributionHandler.ListPlatforms)

			protected := distribution.Group("")
			protected.Use(middleware.AuthRequired(), identity)
			{
				protected.GET("/eligible-tracks", distributionHandler.EligibleTracks)
				protected.POST("/requests", distributionHandler.Create)
				protected.GET("/requests", distributionHandler.History)
				protected.GET("/requests/:id", distributionHandler.Get)
				protected.PUT("/requests/:id/tracks", distributionHandler.UpdateTracks)
				protected.GET("/requests/:id/transactions", distributionHandler.ListTransactions)
			}
		}

		// Payment routes
		payments := v1.Group("/payments")
		payments.Use(middleware.AuthRequired(), identity)
		{
			payments.GET("/operators", paymentHandler.ListOperators)
			payments.POST("/distribution/:id/initiate", limit(middleware.PaymentRateLimit), paymentHandler.Initiate)
			payments.GET("/:charge_id/status", paymentHandler.Status)
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired(), identity)
		{
			// Dashboard
			dashboard := admin.Group("/dashboard")
			{
				dashboard.GET("/stats", adminHandler.GetDashboardStats)
			}
			admin.GET("/revenue", adminHandler.GetRevenue)

			// User management
			adminUsers := admin.Group("/users")
			{
				adminUsers.GET("", adminHandler.GetUsers)
				adminUsers.PUT("/:id/status", adminHandler.UpdateUserStatus)
			}

			// Artist approvals
			adminArtists := admin.Group("/artists")
			{
				adminArtists.GET("/pending", adminHandler.GetPendingArtists)
				adminArtists.PUT("/:id/approve", adminHandler.ApproveArtist)
				adminArtists.PUT("/:id/reject", adminHandler.RejectArtist)
			}

			// Blog publishing
			adminBlog := admin.Group("/blog")
			{
				adminBlog.POST("/categories", blogHandler.CreateCategory)
				adminBlog.POST("/posts", blogHandler.CreatePost)
				adminBlog.PUT("/posts/:id", blogHandler.UpdatePost)
				adminBlog.DELETE("/posts/:id", blogHandler.DeletePost)
			}

			// Distribution management
			adminDistribution := admin.Group("/distribution")
			{
				adminDistribution.GET("/requests", adminHandler.ListDistributionRequests)
				adminDistribution.PUT("/requests/:id/status", adminHandler.UpdateDistributionStatus)
			}
		}
	}

	// Static file serving (for development)
	if cfg.Environment == "development" {
		r.Static("/uploads", "./uploads")
	}

	return r
}
