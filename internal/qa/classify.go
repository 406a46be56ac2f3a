package qa

import (
	"net/url"
	"strings"
)

// FetchResult is the raw observation for one route visit: the final response
// plus every redirect hop taken to reach it.
type FetchResult struct {
	HTTPStatus    int
	FinalURL      string
	RedirectChain []string
	// Statuses holds the status of every hop including the final response,
	// so server errors behind a redirect are not lost.
	Statuses []int
	Err      error
}

// Classify turns an observation into an Outcome plus an optional forbidden
// reason code. The rules are ordered; the first match wins, and anything
// unrecognized is FORBIDDEN so that classification fails closed.
func Classify(targetRoute string, res FetchResult) (Outcome, string) {
	// A transport failure is an implementation defect, not a policy outcome.
	if res.Err != nil {
		return OutcomeServerError, ""
	}
	for _, status := range res.Statuses {
		if status >= 500 {
			return OutcomeServerError, ""
		}
	}

	targetIsLogin := isLoginPath(targetRoute)

	// Visiting a login page and staying there is the page working.
	if targetIsLogin && res.HTTPStatus == 200 && len(res.RedirectChain) == 0 {
		return OutcomeAllow, ""
	}
	// Visiting the forbidden page itself is not a denial.
	if pathOf(targetRoute) == "/forbidden" && res.HTTPStatus == 200 {
		return OutcomeAllow, ""
	}

	for _, hop := range append(res.RedirectChain, res.FinalURL) {
		if pathOf(hop) == "/forbidden" {
			return OutcomeForbidden, queryOf(hop).Get("reason")
		}
	}
	if !targetIsLogin {
		for _, hop := range append(res.RedirectChain, res.FinalURL) {
			if isLoginPath(hop) {
				return OutcomeLoginRequired, ""
			}
		}
	}

	if res.HTTPStatus >= 200 && res.HTTPStatus < 300 {
		// Regression guard: an office route that answered 200 from outside
		// /office silently served the wrong page.
		if routeFamily(targetRoute) == "/office" && !underPath(res.FinalURL, "/office") {
			return OutcomeForbidden, ""
		}
		return OutcomeAllow, ""
	}

	return OutcomeForbidden, ""
}

func pathOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Path
}

func queryOf(raw string) url.Values {
	u, err := url.Parse(raw)
	if err != nil {
		return url.Values{}
	}
	return u.Query()
}

func isLoginPath(raw string) bool {
	p := pathOf(raw)
	return p == "/login" || p == "/staff-login"
}

func underPath(raw, prefix string) bool {
	p := pathOf(raw)
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}
