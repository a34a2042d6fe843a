// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/stratablog/internal/app/blog"
	admincontactsfeature "github.com/dalemusser/stratablog/internal/app/features/admincontacts"
	auditlogfeature "github.com/dalemusser/stratablog/internal/app/features/auditlog"
	contactfeature "github.com/dalemusser/stratablog/internal/app/features/contact"
	dashboardfeature "github.com/dalemusser/stratablog/internal/app/features/dashboard"
	errorsfeature "github.com/dalemusser/stratablog/internal/app/features/errors"
	healthfeature "github.com/dalemusser/stratablog/internal/app/features/health"
	homefeature "github.com/dalemusser/stratablog/internal/app/features/home"
	jobsfeature "github.com/dalemusser/stratablog/internal/app/features/jobs"
	loginfeature "github.com/dalemusser/stratablog/internal/app/features/login"
	logoutfeature "github.com/dalemusser/stratablog/internal/app/features/logout"
	postsfeature "github.com/dalemusser/stratablog/internal/app/features/posts"
	registerfeature "github.com/dalemusser/stratablog/internal/app/features/register"
	"github.com/dalemusser/stratablog/internal/app/store/audit"
	"github.com/dalemusser/stratablog/internal/app/store/ratelimit"
	userstore "github.com/dalemusser/stratablog/internal/app/store/users"
	"github.com/dalemusser/stratablog/internal/app/system/auditlog"
	"github.com/dalemusser/stratablog/internal/app/system/auth"
	"github.com/dalemusser/stratablog/internal/app/system/htmlsanitize"
	"github.com/dalemusser/stratablog/internal/app/system/jsonutil"
	"github.com/dalemusser/stratablog/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/middleware"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

// csrfHeader carries the CSRF token in both directions: responses expose
// it and unsafe requests must send it back.
const csrfHeader = "X-CSRF-Token"

// BuildHandler constructs the root router: global middleware, the blog
// services, and every feature mount.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase

	// Secure cookies in production only.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	errLog := errorsfeature.NewErrorLogger(logger)
	auditLogger := auditlog.New(audit.New(db), logger, auditConfig(appCfg))

	var rateLimitStore *ratelimit.Store
	if appCfg.RateLimitEnabled {
		rateLimitStore = ratelimit.New(db, appCfg.RateLimitLoginAttempts, appCfg.RateLimitLoginWindow, appCfg.RateLimitLoginLockout)
	}

	// Services shared by the feature handlers.
	identity := blog.NewIdentity(userstore.New(db), logger)
	// Fresh user on every request so admin grants and deletions apply at once.
	sessionMgr.SetUserFetcher(blog.NewSessionUsers(identity, logger))
	posts := blog.NewPosts(db, htmlsanitize.Sanitizer{}, deps.FileStorage, logger, appCfg.PostsPerPage)
	threads := blog.NewThreads(db, deps.Mailer, blog.ThreadsConfig{
		SiteName:    appCfg.SiteName,
		MessagesURL: strings.TrimRight(appCfg.BaseURL, "/") + "/my-messages",
	}, logger)
	presenter := viewdata.NewPresenter(db, deps.FileStorage, logger)

	r := chi.NewRouter()

	// ─────────────────────────────────────────────────────────────────────────────
	// Global Middleware
	// ─────────────────────────────────────────────────────────────────────────────

	r.Use(chimw.RequestID)
	r.Use(chimw.Timeout(30 * time.Second))

	// CORS must run before anything that can reject a preflight.
	r.Use(middleware.CORSFromConfig(coreCfg))
	r.Use(middleware.SecurityHeadersFromConfig(coreCfg))

	r.Use(sessionMgr.LoadSessionUser)
	r.Use(csrfMiddleware(appCfg, secure, logger))

	// ─────────────────────────────────────────────────────────────────────────────
	// Routes
	// ─────────────────────────────────────────────────────────────────────────────

	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	healthfeature.MountRootEndpoints(r, healthHandler)

	// Featured images under local storage.
	if appCfg.StorageType == "local" || appCfg.StorageType == "" {
		r.Handle(appCfg.StorageLocalURL+"/*", fileserver.Handler(appCfg.StorageLocalURL, appCfg.StorageLocalPath))
	}

	// Viewer state plus a fresh CSRF token for clients that start cold.
	r.Get("/session", func(w http.ResponseWriter, req *http.Request) {
		jsonutil.OK(w, viewdata.Viewer(req))
	})

	// Public reading
	homeHandler := homefeature.NewHandler(posts, presenter, errLog, logger)
	r.Mount("/", homefeature.Routes(homeHandler))

	// Identity
	registerHandler := registerfeature.NewHandler(identity, errLog, auditLogger)
	r.Mount("/register", registerfeature.Routes(registerHandler, sessionMgr))

	loginHandler := loginfeature.NewHandler(identity, sessionMgr, errLog, auditLogger, rateLimitStore, logger)
	r.Mount("/login", loginfeature.Routes(loginHandler, sessionMgr))

	logoutHandler := logoutfeature.NewHandler(sessionMgr, auditLogger, logger)
	r.Mount("/logout", logoutfeature.Routes(logoutHandler, sessionMgr))

	// Authoring
	dashboardHandler := dashboardfeature.NewHandler(posts, presenter, errLog, logger)
	r.Mount("/dashboard", dashboardfeature.Routes(dashboardHandler, sessionMgr))

	postsHandler := postsfeature.NewHandler(posts, presenter, errLog, auditLogger, logger)
	r.Mount("/posts", postsfeature.Routes(postsHandler, sessionMgr))

	// Contact threads
	contactHandler := contactfeature.NewHandler(threads, errLog, logger)
	r.Mount("/contact", contactfeature.Routes(contactHandler))
	r.Mount("/my-messages", contactfeature.MessagesRoutes(contactHandler, sessionMgr))

	adminContactsHandler := admincontactsfeature.NewHandler(threads, errLog, auditLogger, logger)
	r.Mount("/admin/contacts", admincontactsfeature.Routes(adminContactsHandler, sessionMgr))

	// Operations
	auditHandler := auditlogfeature.NewHandler(db, errLog, logger)
	r.Mount("/admin/audit", auditlogfeature.Routes(auditHandler, sessionMgr))

	if taskRunner != nil {
		jobsHandler := jobsfeature.NewHandler(taskRunner, errLog, logger)
		r.Mount("/admin/jobs", jobsfeature.Routes(jobsHandler, sessionMgr))
	}

	errorsHandler := errorsfeature.NewHandler()
	r.NotFound(errorsHandler.NotFound)
	r.MethodNotAllowed(errorsHandler.MethodNotAllowed)

	return r, nil
}

// csrfMiddleware protects every unsafe request with gorilla/csrf and echoes
// the current token on each response.
func csrfMiddleware(appCfg AppConfig, secure bool, logger *zap.Logger) func(http.Handler) http.Handler {
	opts := []csrf.Option{
		csrf.Secure(secure),
		csrf.Path("/"),
		// Own cookie name so sibling services on the same domain do not collide.
		csrf.CookieName("stratablog_csrf"),
		csrf.FieldName("csrf_token"),
		csrf.RequestHeader(csrfHeader),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			logger.Warn("CSRF validation failed",
				zap.String("path", req.URL.Path),
				zap.String("method", req.Method),
				zap.String("reason", csrf.FailureReason(req).Error()),
			)
			jsonutil.Forbidden(w, "CSRF token invalid or missing")
		})),
	}
	if !secure {
		opts = append(opts, csrf.TrustedOrigins([]string{
			"localhost:8080",
			"localhost:3000",
			"127.0.0.1:8080",
			"127.0.0.1:3000",
		}))
	}
	if appCfg.SessionDomain != "" {
		opts = append(opts, csrf.Domain(appCfg.SessionDomain))
	}
	protect := csrf.Protect([]byte(appCfg.CSRFKey), opts...)

	return func(next http.Handler) http.Handler {
		echo := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set(csrfHeader, csrf.Token(req))
			next.ServeHTTP(w, req)
		})
		protected := protect(echo)
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !secure {
				// Dev servers run over plain HTTP; skip the HTTPS referer check.
				req = csrf.PlaintextHTTPRequest(req)
			}
			protected.ServeHTTP(w, req)
		})
	}
}
