package middleware

import (
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/TrackPoint/internal/http/util"
	"github.com/sifan077/TrackPoint/internal/http/view"
	metrics "github.com/sifan077/TrackPoint/internal/infra/prometheus"
	"go.uber.org/zap"
)

const (
	AdminTokenHeader = "X-Admin-Token"
	AdminCookieName  = "admin_token"

	adminRealm          = `Basic realm="Admin Dashboard"`
	msgAdminDenied      = "Không có quyền truy cập"
	msgAdminUnavailable = "Admin auth chưa được cấu hình"
)

// AdminAuthConfig is the server-side credential material for the admin gate.
type AdminAuthConfig struct {
	Token         string
	BasicUser     string
	BasicPassword string
	CookieMaxAge  time.Duration
	SecureCookie  bool
}

func (c AdminAuthConfig) basicConfigured() bool {
	return c.BasicUser != "" && c.BasicPassword != ""
}

// Configured reports whether at least one credential style is usable.
func (c AdminAuthConfig) Configured() bool {
	return c.Token != "" || c.basicConfigured()
}

// AuthRequest carries everything the gate looks at, lifted out of the HTTP request.
type AuthRequest struct {
	Method          string
	Path            string
	RawQuery        string
	HeaderToken     string
	QueryToken      string
	QueryAdminToken string
	Cookie          string
	Authorization   string
}

type AuthResult int

const (
	AuthDenied AuthResult = iota
	AuthMisconfigured
	AuthViaToken
	AuthViaCookie
	AuthViaBasic
)

func (r AuthResult) String() string {
	switch r {
	case AuthMisconfigured:
		return "misconfigured"
	case AuthViaToken:
		return "token"
	case AuthViaCookie:
		return "cookie"
	case AuthViaBasic:
		return "basic"
	default:
		return "denied"
	}
}

// AuthDecision is the gate's verdict plus the side effects the transport must apply.
type AuthDecision struct {
	Result      AuthResult
	IssueCookie bool
	RedirectTo  string
	Challenge   bool
}

func (d AuthDecision) Allowed() bool {
	return d.Result == AuthViaToken || d.Result == AuthViaCookie || d.Result == AuthViaBasic
}

// Decide evaluates misconfiguration, then token, then cookie, then Basic credentials.
func (c AdminAuthConfig) Decide(req AuthRequest) AuthDecision {
	if !c.Configured() {
		return AuthDecision{Result: AuthMisconfigured}
	}

	if c.Token != "" {
		supplied := firstNonEmpty(req.HeaderToken, req.QueryAdminToken, req.QueryToken)
		if util.SecretEqual(supplied, c.Token) {
			d := AuthDecision{Result: AuthViaToken, IssueCookie: true}
			if req.Method == fiber.MethodGet && isAdminPage(req.Path) && (req.QueryToken != "" || req.QueryAdminToken != "") {
				d.RedirectTo = stripTokens(req.Path, req.RawQuery)
			}
			return d
		}
		if util.SecretEqual(req.Cookie, c.Token) {
			return AuthDecision{Result: AuthViaCookie}
		}
	}

	if c.basicConfigured() {
		user, password, ok := util.ParseBasicAuth(req.Authorization)
		if ok && util.SecretEqual(user, c.BasicUser) && util.SecretEqual(password, c.BasicPassword) {
			return AuthDecision{Result: AuthViaBasic}
		}
	}

	return AuthDecision{Result: AuthDenied, Challenge: c.basicConfigured()}
}

// AdminAuth guards admin pages and data endpoints.
func AdminAuth(cfg AdminAuthConfig, m *metrics.Metrics, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Configured() {
		logger.Error("admin auth is not configured; set ADMIN_API_TOKEN or ADMIN_BASIC_USER/ADMIN_BASIC_PASSWORD")
	}

	return func(c *fiber.Ctx) error {
		d := cfg.Decide(authRequestFrom(c))
		m.AdminAuth(d.Result.String())

		switch {
		case d.Result == AuthMisconfigured:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": msgAdminUnavailable})
		case !d.Allowed():
			logger.Warn("admin access denied", zap.String("path", c.Path()), zap.Any("request_id", c.Locals("request_id")))
			if d.Challenge {
				c.Set(fiber.HeaderWWWAuthenticate, adminRealm)
			}
			c.Status(fiber.StatusUnauthorized)
			if c.Accepts(fiber.MIMETextHTML) != "" {
				page, err := view.RenderDeniedPage(view.DeniedPageData{Message: msgAdminDenied, Challenge: d.Challenge})
				if err != nil {
					return c.SendString(msgAdminDenied)
				}
				c.Type("html", "utf-8")
				return c.SendString(page)
			}
			return c.JSON(fiber.Map{"error": msgAdminDenied})
		}

		if d.IssueCookie {
			maxAge := cfg.CookieMaxAge
			if maxAge <= 0 {
				maxAge = 12 * time.Hour
			}
			c.Cookie(&fiber.Cookie{
				Name:     AdminCookieName,
				Value:    cfg.Token,
				Path:     "/",
				MaxAge:   int(maxAge / time.Second),
				Expires:  time.Now().Add(maxAge),
				HTTPOnly: true,
				Secure:   cfg.SecureCookie,
				SameSite: fiber.CookieSameSiteStrictMode,
			})
		}
		if d.RedirectTo != "" {
			return c.Redirect(d.RedirectTo, fiber.StatusFound)
		}
		return c.Next()
	}
}

func authRequestFrom(c *fiber.Ctx) AuthRequest {
	return AuthRequest{
		Method:          c.Method(),
		Path:            c.Path(),
		RawQuery:        string(c.Request().URI().QueryString()),
		HeaderToken:     c.Get(AdminTokenHeader),
		QueryToken:      c.Query("token"),
		QueryAdminToken: c.Query("adminToken"),
		Cookie:          c.Cookies(AdminCookieName),
		Authorization:   c.Get(fiber.HeaderAuthorization),
	}
}

func isAdminPage(path string) bool {
	return path == "/admin" || path == "/admin.html"
}

func stripTokens(path, rawQuery string) string {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return path
	}
	values.Del("token")
	values.Del("adminToken")
	if len(values) == 0 {
		return path
	}
	return path + "?" + values.Encode()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
