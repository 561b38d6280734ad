// Package session owns the authenticated session lifecycle: startup
// restoration, sign-in/up/out, and lazy profile resolution against the
// profiles table. Consumers observe immutable state snapshots through
// Subscribe; they never share the controller's mutable state.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/debtdesk/debtdesk/internal/domain"
	"github.com/debtdesk/debtdesk/internal/logging"
	"github.com/debtdesk/debtdesk/internal/supabase"
)

// DefaultStartTimeout caps how long Start waits for the restored session
// before settling signed-out.
const DefaultStartTimeout = 3000 * time.Millisecond

// Phase names for State.Phase.
const (
	PhaseInitializing   = "initializing"
	PhaseSignedOut      = "signed_out"
	PhaseProfileLoading = "profile_loading"
	PhaseProfileReady   = "profile_ready"
	PhaseProfileError   = "profile_error"
)

// AuthProvider is the slice of the auth client the controller drives.
type AuthProvider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*supabase.Session, error)
	SignUp(ctx context.Context, email, password string, data map[string]interface{}) (*supabase.Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*supabase.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// ProfileResolver resolves the application profile for an identity,
// provisioning the default row on first sight.
type ProfileResolver interface {
	EnsureExists(ctx context.Context, id, email string) (*domain.Profile, error)
}

// State is an immutable snapshot of the session. Loading is true only
// during startup; Err carries the provider's message verbatim.
type State struct {
	Loading  bool
	Err      string
	Session  *supabase.Session
	Identity *supabase.User
	Profile  *domain.Profile
}

// Phase reports which lifecycle state the snapshot is in.
func (s State) Phase() string {
	switch {
	case s.Loading:
		return PhaseInitializing
	case s.Session == nil:
		return PhaseSignedOut
	case s.Profile != nil:
		return PhaseProfileReady
	case s.Err != "":
		return PhaseProfileError
	default:
		return PhaseProfileLoading
	}
}

// SignedIn reports whether a session is held.
func (s State) SignedIn() bool { return s.Session != nil }

// Controller coordinates auth state. All published snapshots are copies;
// notifications are delivered to subscribers in arrival order.
type Controller struct {
	auth     AuthProvider
	profiles ProfileResolver
	log      *logging.Logger

	// restoreToken yields the persisted refresh token, if any. Nil or an
	// empty result settles the controller signed-out immediately on Start.
	restoreToken func() (string, bool)

	startTimeout time.Duration

	mu      sync.Mutex
	state   State
	subs    map[int]func(State)
	nextSub int

	notifyMu sync.Mutex
}

// Option configures a Controller.
type Option func(*Controller)

// WithStartTimeout overrides the startup race deadline.
func WithStartTimeout(d time.Duration) Option {
	return func(c *Controller) { c.startTimeout = d }
}

// WithTokenRestore supplies the persisted refresh token source.
func WithTokenRestore(fn func() (string, bool)) Option {
	return func(c *Controller) { c.restoreToken = fn }
}

// New creates a session controller in the Initializing state.
func New(auth AuthProvider, profiles ProfileResolver, log *logging.Logger, opts ...Option) *Controller {
	c := &Controller{
		auth:         auth,
		profiles:     profiles,
		log:          log,
		startTimeout: DefaultStartTimeout,
		state:        State{Loading: true},
		subs:         make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Current returns the latest snapshot.
func (c *Controller) Current() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers fn for every state change and returns its disposer.
// fn is not called with the current state on registration.
func (c *Controller) Subscribe(fn func(State)) (cancel func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// publish replaces the state and notifies subscribers in order. notifyMu
// serializes deliveries so overlapping publishers cannot interleave or
// coalesce notifications.
func (c *Controller) publish(next State) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	c.state = next
	fns := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(next)
	}
}

// Start restores the persisted session, racing retrieval against the
// startup timeout. Whichever side loses the race is discarded; the
// controller settles exactly once and never stays in Initializing.
func (c *Controller) Start(ctx context.Context) {
	token := ""
	if c.restoreToken != nil {
		if t, ok := c.restoreToken(); ok {
			token = t
		}
	}
	if token == "" {
		c.publish(State{})
		return
	}

	type result struct {
		session *supabase.Session
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		s, err := c.auth.RefreshSession(ctx, token)
		ch <- result{s, err}
	}()

	timer := time.NewTimer(c.startTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.err != nil {
			c.log.WithError(res.err).Warn("session restore failed")
			c.publish(State{})
			return
		}
		c.adoptSession(ctx, res.session)
	case <-timer.C:
		c.log.Warn("session restore timed out")
		c.publish(State{})
	case <-ctx.Done():
		c.publish(State{})
	}
}

// SignIn authenticates with email and password. Provider failures are
// published as the provider's own message and returned; they never panic.
func (c *Controller) SignIn(ctx context.Context, email, password string) error {
	session, err := c.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		c.publish(State{Err: err.Error()})
		return err
	}
	c.adoptSession(ctx, session)
	return nil
}

// SignUp registers a new account, carrying name as user metadata so the
// profile row can pick it up.
func (c *Controller) SignUp(ctx context.Context, email, password, name string) error {
	session, err := c.auth.SignUp(ctx, email, password, map[string]interface{}{"name": name})
	if err != nil {
		c.publish(State{Err: err.Error()})
		return err
	}
	// Providers with email confirmation enabled return no session yet.
	if session == nil || session.AccessToken == "" {
		c.publish(State{})
		return nil
	}
	c.adoptSession(ctx, session)
	return nil
}

// SignOut revokes the session and clears all session state synchronously.
// The cleared snapshot is published before SignOut returns; it does not
// wait on any in-flight profile resolution.
func (c *Controller) SignOut(ctx context.Context) error {
	c.mu.Lock()
	token := ""
	if c.state.Session != nil {
		token = c.state.Session.AccessToken
	}
	c.mu.Unlock()

	var err error
	if token != "" {
		err = c.auth.SignOut(ctx, token)
		if err != nil {
			c.log.WithError(err).Warn("sign-out revocation failed")
		}
	}

	c.publish(State{})
	return err
}

// RefreshProfile re-runs profile resolution for the current identity. It
// is a no-op when signed out.
func (c *Controller) RefreshProfile(ctx context.Context) {
	c.mu.Lock()
	session := c.state.Session
	c.mu.Unlock()
	if session == nil || session.User == nil {
		return
	}
	c.resolveProfile(ctx, session)
}

// adoptSession publishes the signed-in snapshot and resolves the profile
// in the background.
func (c *Controller) adoptSession(ctx context.Context, session *supabase.Session) {
	c.publish(State{Session: session, Identity: session.User})
	go c.resolveProfile(ctx, session)
}

// resolveProfile looks the profile up by identity id, provisioning the
// default row when absent. The result is applied to whatever state holds
// when it lands; a sign-out that overlaps an in-flight resolution can be
// followed by a late profile publication.
func (c *Controller) resolveProfile(ctx context.Context, session *supabase.Session) {
	if session.User == nil {
		return
	}

	profile, err := c.profiles.EnsureExists(ctx, session.User.ID, session.User.Email)

	c.mu.Lock()
	next := c.state
	c.mu.Unlock()

	if err != nil {
		c.log.WithError(err).WithFields(map[string]interface{}{
			"user_id": session.User.ID,
		}).Error("profile resolution failed")
		next.Profile = nil
		next.Err = err.Error()
		c.publish(next)
		return
	}

	next.Profile = profile
	next.Err = ""
	c.publish(next)
}
