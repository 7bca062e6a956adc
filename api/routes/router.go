package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kickoffclub/hq-backend/api/controllers"
	webhookcontrollers "github.com/kickoffclub/hq-backend/api/controllers/webhooks"
	"github.com/kickoffclub/hq-backend/api/middleware"
	"github.com/kickoffclub/hq-backend/internal/analytics"
	"github.com/kickoffclub/hq-backend/internal/billing"
	"github.com/kickoffclub/hq-backend/internal/coupons"
	"github.com/kickoffclub/hq-backend/internal/courses"
	stripewebhook "github.com/kickoffclub/hq-backend/internal/webhooks/stripe"
	"github.com/kickoffclub/hq-backend/pkg/config"
	"github.com/kickoffclub/hq-backend/pkg/logger"
	"github.com/kickoffclub/hq-backend/pkg/redis"
	"github.com/kickoffclub/hq-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	deps map[string]controllers.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	couponService coupons.Service,
	billingService billing.Service,
	courseService courses.Service,
	analyticsService analytics.Service,
	stripeClient *stripe.Client,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	couponPolicy := middleware.NewRateLimitPolicy(
		"coupon_validate",
		cfg.RateLimit.CouponValidateWindow,
		cfg.RateLimit.CouponValidateLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, stripeWebhookGuard, logg))
	})

	// Catalog browsing works logged out; a valid token upgrades the view.
	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWT, logg))
		r.Get("/api/v1/courses", controllers.CourseList(courseService, logg))
		r.Get("/api/v1/courses/{courseId}", controllers.CourseDetail(courseService, logg))
	})

	// Beacon traffic carries no credentials for logged-out visitors, so the
	// vitals endpoint takes whatever identity the token provides.
	if analyticsService != nil {
		r.With(middleware.OptionalAuth(cfg.JWT, logg)).
			Post("/api/v1/analytics/vitals", controllers.WebVitals(analyticsService, logg))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.With(middleware.RateLimit(couponPolicy, redisClient, logg)).
			Post("/coupons/validate", controllers.CouponValidate(couponService, logg))

		r.Route("/billing", func(r chi.Router) {
			r.Post("/checkout", controllers.BillingCheckout(billingService, logg))
			r.Post("/portal", controllers.BillingPortal(billingService, logg))
		})

		r.Post("/courses/{courseId}/enroll", controllers.CourseEnroll(courseService, logg))
		r.Post("/courses/{courseId}/progress", controllers.CourseProgress(courseService, logg))

		r.Route("/me", func(r chi.Router) {
			r.Get("/enrollments", controllers.MyEnrollments(courseService, logg))
			r.Get("/certificates", controllers.MyCertificates(courseService, logg))
			r.Route("/saved-courses", func(r chi.Router) {
				r.Get("/", controllers.SavedCourseList(courseService, logg))
				r.Post("/{courseId}", controllers.SavedCourseAdd(courseService, logg))
				r.Delete("/{courseId}", controllers.SavedCourseRemove(courseService, logg))
			})
		})
	})

	return r
}
