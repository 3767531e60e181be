package tinode

import "sync"

// loginCredentials is a cached scheme+secret pair used for auto-login,
// held in authCoordinator.creds.
type loginCredentials struct {
	scheme string
	secret []byte
}

// authCoordinator owns auto-login policy, the login-in-progress guard, and
// the cached credentials used to replay login after a reconnect. It does
// not itself send anything on the wire; Session.Login does, consulting
// this coordinator for the guard and the cache.
type authCoordinator struct {
	mu sync.Mutex

	autoLogin       bool
	loginInProgress bool
	creds           *loginCredentials

	clockOffsetMillis int64
}

// SetAutoLoginWithToken caches (scheme="token", secret=token) and enables
// auto-login
func (a *authCoordinator) SetAutoLoginWithToken(token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.autoLogin = true
	a.creds = &loginCredentials{scheme: "token", secret: []byte(token)}
}

// SetAutoLogin toggles auto-login without changing cached credentials.
func (a *authCoordinator) SetAutoLogin(on bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.autoLogin = on
}

// cacheCredentials records the scheme+secret most recently used for a
// successful (or attempted) explicit login, so a later auto-login can
// replay it.
func (a *authCoordinator) cacheCredentials(scheme string, secret []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.creds = &loginCredentials{scheme: scheme, secret: secret}
}

// clearCredentials drops cached credentials, e.g. on auth failure in
// [400,500) or full logout.
func (a *authCoordinator) clearCredentials() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.creds = nil
}

// readyForAutoLogin reports whether a replay login should be chained after
// hello: auto-login is on, credentials are cached, and no login is already
// in flight.
func (a *authCoordinator) readyForAutoLogin() (scheme string, secret []byte, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.autoLogin || a.creds == nil || a.loginInProgress {
		return "", nil, false
	}
	return a.creds.scheme, a.creds.secret, true
}

// beginLogin marks a login as in progress, returning an error if one
// already is.
func (a *authCoordinator) beginLogin() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.loginInProgress {
		return &InvalidState{Msg: "Login in progress"}
	}
	a.loginInProgress = true
	return nil
}

func (a *authCoordinator) endLogin() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loginInProgress = false
}

func (a *authCoordinator) setClockOffset(offsetMillis int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clockOffsetMillis = offsetMillis
}

func (a *authCoordinator) getClockOffset() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.clockOffsetMillis
}
