package qa

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// scanParallelism bounds the concurrent requests the scans issue; the scans
// target the portal's own server and must not overload it.
const scanParallelism = 4

// DeadEndIssue flags a critical route that 404s or loops via redirects.
type DeadEndIssue struct {
	Route  string `json:"route"`
	Kind   string `json:"kind"` // "not_found" or "redirect_loop"
	Detail string `json:"detail,omitempty"`
}

// SmokeIssue flags a critical page missing its expected DOM marker.
type SmokeIssue struct {
	Route  string `json:"route"`
	Detail string `json:"detail"`
}

// smokeMarkers maps critical pages to a DOM fragment the rendered page must
// contain. Protected routes that correctly bounce to login skip the check.
var smokeMarkers = map[string]string{
	"/":            `data-page="landing"`,
	"/login":       `data-page="login"`,
	"/staff-login": `data-page="staff-login"`,
	"/forbidden":   `data-page="forbidden"`,
	"/cabinet":     `data-page="cabinet"`,
	"/office":      `data-page="office"`,
	"/admin":       `data-page="admin"`,
}

// ScanDeadEnds follows redirects from every critical route and reports 404s
// and redirect loops. Routes are independent, so the scan runs them with
// bounded parallelism.
func (e *Engine) ScanDeadEnds(ctx context.Context, routes []string, cookie *http.Cookie) ([]DeadEndIssue, error) {
	var mu sync.Mutex
	var issues []DeadEndIssue

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanParallelism)
	for _, route := range routes {
		g.Go(func() error {
			res := e.fetch(gctx, route, cookie)
			var issue *DeadEndIssue
			switch {
			case res.Err != nil:
				issue = &DeadEndIssue{Route: route, Kind: "not_found", Detail: res.Err.Error()}
			case res.HTTPStatus == http.StatusNotFound:
				issue = &DeadEndIssue{Route: route, Kind: "not_found", Detail: res.FinalURL}
			case len(res.RedirectChain) > maxRedirectHops:
				issue = &DeadEndIssue{Route: route, Kind: "redirect_loop", Detail: strings.Join(res.RedirectChain, " -> ")}
			}
			if issue != nil {
				mu.Lock()
				issues = append(issues, *issue)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return issues, nil
}

// ScanSmoke fetches critical pages anonymously and checks their DOM markers.
// A redirect to a login page is the guard working, so the marker check is
// skipped for that route.
func (e *Engine) ScanSmoke(ctx context.Context, routes []string) ([]SmokeIssue, error) {
	var mu sync.Mutex
	var issues []SmokeIssue

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanParallelism)
	for _, route := range routes {
		marker, ok := smokeMarkers[route]
		if !ok {
			continue
		}
		g.Go(func() error {
			body, res := e.fetchBody(gctx, route)
			if res.Err != nil {
				mu.Lock()
				issues = append(issues, SmokeIssue{Route: route, Detail: res.Err.Error()})
				mu.Unlock()
				return nil
			}
			if isLoginPath(res.FinalURL) && !isLoginPath(route) {
				return nil
			}
			if res.HTTPStatus != http.StatusOK || !strings.Contains(body, marker) {
				mu.Lock()
				issues = append(issues, SmokeIssue{Route: route, Detail: "missing marker " + marker})
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return issues, nil
}

// fetchBody follows redirects like fetch and additionally returns the final
// response body.
func (e *Engine) fetchBody(ctx context.Context, route string) (string, FetchResult) {
	res := e.fetch(ctx, route, nil)
	if res.Err != nil {
		return "", res
	}
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, e.baseURL+res.FinalURL, nil)
	if err != nil {
		res.Err = err
		return "", res
	}
	resp, err := e.client.Do(req)
	if err != nil {
		res.Err = err
		return "", res
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		res.Err = err
		return "", res
	}
	return string(body), res
}
