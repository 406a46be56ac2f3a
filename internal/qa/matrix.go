package qa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/snt-portal/snt-portal/internal/auth"
	"github.com/snt-portal/snt-portal/internal/rbac"
	"github.com/snt-portal/snt-portal/internal/shared"
)

const (
	// maxRedirectHops bounds the manual redirect follower; anything deeper
	// is a loop.
	maxRedirectHops = 5
	// requestTimeout bounds each HTTP call so a hung route cannot stall the
	// whole matrix run.
	requestTimeout = 10 * time.Second
	// interRequestDelay throttles the engine so it does not hammer the
	// server under test. Cells are independent; this is politeness, not a
	// correctness requirement.
	interRequestDelay = 25 * time.Millisecond
)

// MatrixResult is one cell of the access matrix.
type MatrixResult struct {
	Role            rbac.Role `json:"role"`
	Route           string    `json:"route"`
	Expected        Outcome   `json:"expected"`
	Actual          Outcome   `json:"actual"`
	HTTPStatus      int       `json:"httpStatus"`
	FinalURL        string    `json:"finalUrl"`
	RedirectChain   []string  `json:"redirectChain,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	MatchesExpected bool      `json:"matchesExpected"`
}

// MatrixReport aggregates one full run.
type MatrixReport struct {
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Cells      []MatrixResult `json:"cells"`
	Mismatches int            `json:"mismatches"`
	// LoginFallbacks counts roles whose real login flow failed and whose
	// session was established through the session store instead.
	LoginFallbacks int `json:"loginFallbacks"`
}

// Engine drives the portal over HTTP and verifies the access matrix.
type Engine struct {
	baseURL   string
	client    *http.Client
	sessions  *shared.SessionManager
	dir       *auth.Directory
	passwords auth.StaffPasswords
	logger    *slog.Logger
	delay     time.Duration
}

// NewEngine constructs an Engine targeting baseURL. The session manager is
// used only for the synthetic-cookie login fallback.
func NewEngine(baseURL string, sessions *shared.SessionManager, dir *auth.Directory, passwords auth.StaffPasswords, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: requestTimeout,
			// Redirects are followed manually so every hop is recorded.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		sessions:  sessions,
		dir:       dir,
		passwords: passwords,
		logger:    logger,
		delay:     interRequestDelay,
	}
}

// SetDelay overrides the inter-request throttle; tests drop it to zero.
func (e *Engine) SetDelay(d time.Duration) {
	e.delay = d
}

// RunMatrix checks every role against every route. Routes for a given role
// run in declared order; roles use independently obtained sessions and never
// interfere with each other.
func (e *Engine) RunMatrix(ctx context.Context, routes []string) (*MatrixReport, error) {
	report := &MatrixReport{StartedAt: time.Now()}
	for _, role := range rbac.AllRoles() {
		cookie, fallback, err := e.sessionFor(ctx, role)
		if err != nil {
			return nil, fmt.Errorf("qa: establish session for %s: %w", role, err)
		}
		if fallback {
			report.LoginFallbacks++
		}
		for _, route := range routes {
			if err := e.pause(ctx); err != nil {
				return nil, err
			}
			res := e.fetch(ctx, route, cookie)
			actual, reason := Classify(route, res)
			cell := MatrixResult{
				Role:            role,
				Route:           route,
				Expected:        Expected(role, route),
				Actual:          actual,
				HTTPStatus:      res.HTTPStatus,
				FinalURL:        res.FinalURL,
				RedirectChain:   res.RedirectChain,
				Reason:          reason,
				MatchesExpected: actual == Expected(role, route),
			}
			if !cell.MatchesExpected {
				report.Mismatches++
				e.logger.Warn("access matrix mismatch",
					slog.String("role", string(role)),
					slog.String("route", route),
					slog.String("expected", string(cell.Expected)),
					slog.String("actual", string(cell.Actual)))
			}
			report.Cells = append(report.Cells, cell)
		}
	}
	report.FinishedAt = time.Now()
	return report, nil
}

// sessionFor obtains a session cookie for the role: nil for guests, the real
// login flow for everyone else, and a synthetic session written through the
// session store when the real flow fails.
func (e *Engine) sessionFor(ctx context.Context, role rbac.Role) (*http.Cookie, bool, error) {
	if role == rbac.RoleGuest {
		return nil, false, nil
	}

	cookie, err := e.loginFor(ctx, role)
	if err == nil {
		return cookie, false, nil
	}
	e.logger.Warn("real login failed, falling back to synthetic session",
		slog.String("role", string(role)), slog.Any("error", err))

	user, derr := e.dir.StaffByRole(role)
	if role == rbac.RoleResident {
		user, derr = e.dir.ByScenario(auth.ScenarioDefault)
	}
	if derr != nil {
		return nil, false, derr
	}
	id, serr := e.sessions.Establish(ctx, shared.SessionPayload{UserID: user.ID, Role: string(role)})
	if serr != nil {
		return nil, false, serr
	}
	return &http.Cookie{Name: e.sessions.CookieName(), Value: id}, true, nil
}

func (e *Engine) loginFor(ctx context.Context, role rbac.Role) (*http.Cookie, error) {
	var endpoint string
	var body any
	if role == rbac.RoleResident {
		endpoint = "/api/auth/resident-login"
		body = map[string]string{"scenario": auth.ScenarioDefault}
	} else {
		endpoint = "/api/auth/login"
		body = map[string]string{
			"mode":     "staff",
			"roleRu":   staffRoleName(role),
			"password": e.staffPassword(role),
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("login for %s: status %d", role, resp.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == e.sessions.CookieName() && c.Value != "" {
			return c, nil
		}
	}
	return nil, fmt.Errorf("login for %s: no session cookie in response", role)
}

func staffRoleName(role rbac.Role) string {
	switch role {
	case rbac.RoleAdmin:
		return "Администратор"
	case rbac.RoleChairman:
		return "Председатель"
	case rbac.RoleSecretary:
		return "Секретарь"
	case rbac.RoleAccountant:
		return "Бухгалтер"
	}
	return string(role)
}

func (e *Engine) staffPassword(role rbac.Role) string {
	switch role {
	case rbac.RoleAdmin:
		return e.passwords.Admin
	case rbac.RoleChairman:
		return e.passwords.Chairman
	case rbac.RoleSecretary:
		return e.passwords.Secretary
	case rbac.RoleAccountant:
		return e.passwords.Accountant
	}
	return ""
}

// fetch performs a GET and follows redirects manually, recording every hop.
// State is a bounded loop over {currentURL, chain}; the hop cap turns
// redirect loops into classifiable results instead of hangs.
func (e *Engine) fetch(ctx context.Context, route string, cookie *http.Cookie) FetchResult {
	current := route
	var chain []string
	var statuses []int

	for hop := 0; hop <= maxRedirectHops; hop++ {
		reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, e.baseURL+current, nil)
		if err != nil {
			cancel()
			return FetchResult{Err: err, FinalURL: current, RedirectChain: chain, Statuses: statuses}
		}
		if cookie != nil {
			req.AddCookie(cookie)
		}

		resp, err := e.client.Do(req)
		cancel()
		if err != nil {
			return FetchResult{Err: err, FinalURL: current, RedirectChain: chain, Statuses: statuses}
		}
		resp.Body.Close()
		statuses = append(statuses, resp.StatusCode)

		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			loc := resp.Header.Get("Location")
			next := resolveLocation(current, loc)
			chain = append(chain, next)
			current = next
			continue
		}
		return FetchResult{
			HTTPStatus:    resp.StatusCode,
			FinalURL:      current,
			RedirectChain: chain,
			Statuses:      statuses,
		}
	}

	// Hop cap exhausted while still redirecting: report the loop with the
	// last redirect status; classification fails closed.
	last := 0
	if len(statuses) > 0 {
		last = statuses[len(statuses)-1]
	}
	return FetchResult{HTTPStatus: last, FinalURL: current, RedirectChain: chain, Statuses: statuses}
}

func resolveLocation(current, location string) string {
	base, err := url.Parse(current)
	if err != nil {
		return location
	}
	ref, err := url.Parse(location)
	if err != nil {
		return location
	}
	resolved := base.ResolveReference(ref)
	// Keep results host-relative; the engine only ever talks to one origin.
	resolved.Scheme = ""
	resolved.Host = ""
	return resolved.String()
}

func (e *Engine) pause(ctx context.Context) error {
	if e.delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(e.delay):
		return nil
	}
}
