package routes

import (
	adminapi "schoolsite-app/internal/api/admin"
	authapi "schoolsite-app/internal/api/auth"
	plansapi "schoolsite-app/internal/api/plans"
	schoolsapi "schoolsite-app/internal/api/schools"
	siteapi "schoolsite-app/internal/api/site"
	stripewebhooks "schoolsite-app/internal/api/stripewebhook"
	usersapi "schoolsite-app/internal/api/users"
	"schoolsite-app/internal/app/http/middleware"
	"schoolsite-app/internal/domain/access"
	"schoolsite-app/internal/domain/billing"
	"schoolsite-app/internal/domain/bookings"
	"schoolsite-app/internal/domain/communications"
	"schoolsite-app/internal/domain/features"
	"schoolsite-app/internal/domain/plans"
	"schoolsite-app/internal/domain/subscriptions"
	"schoolsite-app/internal/domain/tenants"
	"schoolsite-app/internal/domain/users"
	"schoolsite-app/internal/infra/metrics"
	"schoolsite-app/internal/infra/stripe"
	"schoolsite-app/internal/jobs"

	"github.com/gin-gonic/gin"
)

// Deps is everything the HTTP layer needs, built once in main.
type Deps struct {
	Users          users.Store
	Schools        tenants.Store
	Subscriptions  subscriptions.Store
	Plans          plans.Store
	Events         bookings.Store
	Communications communications.Store
	BillingEvents  billing.EventLog

	Resolver  *tenants.Resolver
	Engine    *features.Engine
	Guard     *access.Guard
	Consent   access.GuardConfig
	Allocator *bookings.Allocator
	Sweeper   *jobs.Sweeper

	Auth                authapi.Config
	AuthTx              authapi.Transactor // nil: partial writes are undone by deletes
	Prices              stripe.PriceSource // nil when billing is not configured
	StripeProductID     string
	StripeWebhookSecret string
	CronSecret          string
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	authH := authapi.NewHandler(d.Users, d.Schools, d.Subscriptions, d.Auth).WithTransactor(d.AuthTx)
	plansH := plansapi.NewHandler(d.Plans, d.Prices, d.StripeProductID)
	usersH := usersapi.NewHandler(d.Users, d.Schools, d.Subscriptions, d.Consent)
	adminH := adminapi.NewHandler(d.Schools, d.Subscriptions, d.Resolver, d.Sweeper, d.CronSecret)
	webhookH := stripewebhooks.NewHandler(stripewebhooks.Deps{
		Secret:        d.StripeWebhookSecret,
		Events:        d.BillingEvents,
		Plans:         d.Plans,
		Schools:       d.Schools,
		Subscriptions: d.Subscriptions,
		Resolver:      d.Resolver,
	})
	siteH := siteapi.NewHandler(siteapi.Deps{
		Engine:         d.Engine,
		Guard:          d.Guard,
		Consent:        d.Consent,
		Events:         d.Events,
		Allocator:      d.Allocator,
		Communications: d.Communications,
		Users:          d.Users,
	})
	schoolsH := schoolsapi.NewHandler(schoolsapi.Deps{
		Schools:        d.Schools,
		Subscriptions:  d.Subscriptions,
		Resolver:       d.Resolver,
		Engine:         d.Engine,
		Events:         d.Events,
		Allocator:      d.Allocator,
		Communications: d.Communications,
	})

	// raw body needed for the signature check, so no sanitiser here
	r.POST("/webhook", webhookH.Handle)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metrics.Handler())
	r.POST("/api/cron/sweep", adminH.CronSweep)

	public := r.Group("/api")
	public.Use(middleware.SanitizeAndCleanInputMiddleware())

	public.POST("/register-school", authH.RegisterSchool)
	public.POST("/register-parent", authH.RegisterParent)
	public.POST("/login", authH.Login)
	public.GET("/plans", plansH.ListPlans)

	public.GET("/auth/google", authH.GoogleStart)
	public.GET("/auth/google/callback", authH.GoogleCallback)

	public.GET("/schools/:slug/status", middleware.OptionalAuth(), middleware.LoadActor(d.Users), schoolsH.Status)

	// Public school site: by host (/api/site) or by path (/api/s/:slug)
	resolve := []gin.HandlerFunc{
		middleware.OptionalAuth(),
		middleware.LoadActor(d.Users),
		middleware.ResolveTenant(d.Resolver, d.Subscriptions),
	}
	siteH.Mount(public.Group("/site", resolve...))
	siteH.Mount(public.Group("/s/:slug", resolve...))

	// Authenticated
	auth := public.Group("")
	auth.Use(middleware.AuthMiddleware(), middleware.LoadActor(d.Users))
	auth.GET("/me", usersH.GetCurrentUser)
	auth.PUT("/me", usersH.UpdateProfile)
	auth.POST("/change-password", authH.ChangePassword)
	auth.POST("/schools", authH.AddSchool)

	// School dashboard
	schoolsH.Mount(auth.Group("/schools/:slug", middleware.RequireSchoolAdmin(d.Schools, d.Subscriptions)))

	// Platform admin routes
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(), middleware.RequireRole(users.RoleAdmin), middleware.LoadActor(d.Users))
	admin.GET("/schools", adminH.ListSchools)
	admin.GET("/schools/:id", adminH.GetSchoolDetails)
	admin.GET("/stats", adminH.Stats)
	admin.POST("/schools/:id/activate", adminH.Activate)
	admin.POST("/schools/:id/deactivate", adminH.Deactivate)
	admin.POST("/trial-check", adminH.TrialCheck)
	admin.POST("/sync-plans", plansH.SyncPlansFromStripe)
}
