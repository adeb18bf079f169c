package clientcache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SignOutTimeout bounds the upstream sign-out call so a hung network request
// cannot block cleanup indefinitely.
const SignOutTimeout = 5 * time.Second

var signOutTimeout = SignOutTimeout

// StepResult reports the outcome of a single cleanup step.
type StepResult struct {
	Step string
	Err  error
}

// IsAuthCookie reports whether a cookie name matches the known auth cookie
// patterns cleared on sign-out.
func IsAuthCookie(name string) bool {
	switch name {
	case "sb-access-token", "sb-refresh-token", "supabase-auth-token":
		return true
	}
	lower := strings.ToLower(name)
	return strings.Contains(lower, "-auth-token") ||
		strings.Contains(lower, "supabase") ||
		strings.Contains(lower, "sb-")
}

// SignOutCleanup runs the sign-out sequence: persistence flags, mirror keys,
// volatile session data, the upstream sign-out call, and auth cookies. Each
// step is guarded independently; a failure is recorded and the remaining
// steps still run. The upstream call races a fixed timeout.
func SignOutCleanup(ctx context.Context, store *Store, client *http.Client, jar http.CookieJar, site *url.URL, signOutURL string) []StepResult {
	results := make([]StepResult, 0, 5)

	results = append(results, StepResult{Step: "persistence_flags", Err: func() error {
		if store.HasRememberMe() {
			store.SetManualSignOut(false)
		} else {
			store.SetManualSignOut(true)
		}
		return nil
	}()})

	results = append(results, StepResult{Step: "provider_token_keys", Err: func() error {
		for _, key := range ProviderTokenKeys {
			store.Remove(key)
		}
		return nil
	}()})

	results = append(results, StepResult{Step: "session_storage", Err: store.ClearSession()})

	results = append(results, StepResult{Step: "upstream_signout", Err: signOutUpstream(ctx, client, signOutURL)})

	results = append(results, StepResult{Step: "auth_cookies", Err: clearAuthCookies(jar, site)})

	return results
}

// signOutUpstream posts to the sign-out endpoint, racing a fixed timeout.
func signOutUpstream(ctx context.Context, client *http.Client, signOutURL string) error {
	if client == nil || signOutURL == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, signOutTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, signOutURL, nil)
		if err != nil {
			done <- err
			return
		}
		resp, err := client.Do(req)
		if err != nil {
			done <- err
			return
		}
		_ = resp.Body.Close()
		if resp.StatusCode >= 400 {
			done <- fmt.Errorf("sign-out returned status %d", resp.StatusCode)
			return
		}
		done <- nil
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return errors.New("sign-out call timed out")
	}
}

// clearAuthCookies expires every cookie in the jar whose name matches the
// auth cookie patterns.
func clearAuthCookies(jar http.CookieJar, site *url.URL) error {
	if jar == nil || site == nil {
		return nil
	}

	expired := make([]*http.Cookie, 0)
	for _, cookie := range jar.Cookies(site) {
		if !IsAuthCookie(cookie.Name) {
			continue
		}
		expired = append(expired, &http.Cookie{
			Name:    cookie.Name,
			Value:   "",
			Path:    "/",
			MaxAge:  -1,
			Expires: time.Unix(0, 0),
		})
	}

	if len(expired) > 0 {
		jar.SetCookies(site, expired)
	}
	return nil
}
