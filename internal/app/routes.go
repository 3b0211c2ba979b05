package app

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tribuna-digital/portal/internal/plugins/articles"
	"github.com/tribuna-digital/portal/internal/plugins/audit"
	"github.com/tribuna-digital/portal/internal/plugins/auth"
	"github.com/tribuna-digital/portal/internal/plugins/otp"
)

// RegisterRoutes builds the full dependency graph and sets up all
// application routes. It registers public routes directly and delegates to
// each plugin's route registration function.
//
// This is the single place where all routes are aggregated. When a new
// plugin is added, its routes are registered here.
func (a *App) RegisterRoutes() {
	e := a.Echo

	// --- Public Routes (no auth required) ---

	// Health check endpoint for container orchestration.
	e.GET("/healthz", a.healthz)

	// Prometheus scrape endpoint.
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// --- Plugin wiring ---

	// audit: the security event sink everything else reports into.
	auditRepo := audit.NewRepository(a.DB)
	auditSvc := audit.NewService(auditRepo)

	// otp: code persistence plus out-of-band WhatsApp delivery. Without a
	// configured webhook, codes land in the server log (development only).
	codeRepo := otp.NewCodeRepository(a.DB)
	var sender otp.Sender
	if a.Config.OTP.WebhookURL != "" {
		sender = otp.NewWebhookSender(a.Config.OTP.WebhookURL, a.Config.OTP.WebhookToken)
	} else {
		sender = otp.LogSender{}
	}

	// auth: the session manager at the center of the login flow.
	userRepo := auth.NewUserRepository(a.DB)
	store := auth.NewSessionStore(a.Redis, a.Config.Auth.SessionTTL)
	tokens := auth.NewTokenIssuer(a.Config.Auth.SecretKey, a.Config.Auth.AccessTTL)
	a.Manager = auth.NewManager(userRepo, codeRepo, sender, store, tokens, audit.NewSecurityLog(auditSvc))

	// articles: the content pipeline.
	articleRepo := articles.NewRepository(a.DB)
	articleSvc := articles.NewService(articleRepo, auditSvc)

	// --- Plugin routes ---

	auth.RegisterRoutes(e, auth.NewHandler(a.Manager), a.Manager)
	articles.RegisterRoutes(e, articles.NewHandler(articleSvc), a.Manager)
	audit.RegisterRoutes(e, audit.NewHandler(auditSvc), a.Manager)
}

// healthz reports liveness plus dependency reachability. A failing
// dependency returns 503 so orchestrators stop routing traffic here.
func (a *App) healthz(c echo.Context) error {
	ctx := c.Request().Context()

	status := map[string]string{"status": "ok"}
	code := http.StatusOK

	if err := a.DB.PingContext(ctx); err != nil {
		status["status"] = "degraded"
		status["database"] = "unreachable"
		code = http.StatusServiceUnavailable
	}
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		status["status"] = "degraded"
		status["redis"] = "unreachable"
		code = http.StatusServiceUnavailable
	}

	return c.JSON(code, status)
}
