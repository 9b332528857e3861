// Package auth establishes and checks the identity of the user behind a session.
package auth

import (
	"context"
	"encoding/gob"
	"log/slog"
	"strings"

	"github.com/alexedwards/scs/v2"
	"github.com/donseba/go-htmx"
	"github.com/myrjola/cdms/internal/errors"
	"github.com/myrjola/cdms/internal/models"
	"github.com/myrjola/cdms/internal/repositories"
)

var (
	// ErrForbidden is returned when the role of the user does not allow the action.
	ErrForbidden = errors.NewSentinel("forbidden")
	// ErrRegisteredNotLoggedIn is returned when registration succeeded but the follow-up login did not.
	ErrRegisteredNotLoggedIn = errors.NewSentinel("registered but not logged in")
)

type sessionKey string

const (
	identitySessionKey = sessionKey("identity")
	tokenSessionKey    = sessionKey("token")
)

// LoginPath is where unauthenticated users are sent.
const LoginPath = "/auth/login"

func init() {
	gob.Register(models.Identity{})
}

type Gate struct {
	logger         *slog.Logger
	sessionManager *scs.SessionManager
	users          repositories.UserDirectory
	htmx           *htmx.HTMX
	// hashKey keys the session token hash that is added to the logs.
	hashKey []byte
}

func New(
	logger *slog.Logger,
	sessionManager *scs.SessionManager,
	users repositories.UserDirectory,
	sessionSecret string,
) *Gate {
	return &Gate{
		logger:         logger.With("source", "auth"),
		sessionManager: sessionManager,
		users:          users,
		htmx:           htmx.New(),
		hashKey:        []byte(sessionSecret),
	}
}

// Login authenticates the user with the directory and stores the identity in the session.
//
// The profile is fetched best effort. Without it the identity has the username and defaults.
func (g *Gate) Login(ctx context.Context, username, password string) (models.Identity, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return models.Identity{}, &models.ValidationError{Message: "Username and password are required"}
	}

	token, err := g.users.Login(ctx, username, password)
	if err != nil {
		return models.Identity{}, errors.Wrap(err, "login", slog.String("username", username))
	}

	profile, err := g.users.Profile(ctx, token)
	if err != nil {
		g.logger.LogAttrs(ctx, slog.LevelWarn, "could not fetch profile, using defaults",
			slog.String("username", username), errors.SlogError(err))
		profile = models.Profile{}
	}
	identity := models.NewIdentity(username, token, profile)

	// Renew the session token to prevent session fixation.
	if err = g.sessionManager.RenewToken(ctx); err != nil {
		return models.Identity{}, errors.Wrap(err, "renew session token")
	}
	g.sessionManager.Put(ctx, string(identitySessionKey), identity)
	g.sessionManager.Put(ctx, string(tokenSessionKey), token)

	g.logger.LogAttrs(ctx, slog.LevelInfo, "user logged in",
		slog.String("username", identity.Username), slog.String("role", string(identity.Role)))
	return identity, nil
}

// Register validates the form, registers the user and logs them in.
//
// When the login after a successful registration fails, the returned error matches [ErrRegisteredNotLoggedIn].
func (g *Gate) Register(ctx context.Context, in models.RegisterInput) (models.Identity, error) {
	if err := in.Validate(); err != nil {
		return models.Identity{}, err
	}
	in = in.WithDefaults()
	if err := g.users.Register(ctx, in); err != nil {
		return models.Identity{}, errors.Wrap(err, "register", slog.String("username", in.Username))
	}

	identity, err := g.Login(ctx, in.Username, in.Password)
	if err != nil {
		g.logger.LogAttrs(ctx, slog.LevelWarn, "login after registration failed",
			slog.String("username", in.Username), errors.SlogError(err))
		return models.Identity{}, errors.Join(ErrRegisteredNotLoggedIn, err)
	}
	return identity, nil
}

// tokenRevoker is implemented by user directories that keep issued tokens themselves.
type tokenRevoker interface {
	Revoke(ctx context.Context, token string)
}

// Logout destroys the session. Failures are logged since the user is logged out from their point of view anyway.
func (g *Gate) Logout(ctx context.Context) {
	if revoker, ok := g.users.(tokenRevoker); ok {
		if identity, found := g.Identity(ctx); found {
			revoker.Revoke(ctx, identity.Token)
		}
	}
	if err := g.sessionManager.Destroy(ctx); err != nil {
		g.logger.LogAttrs(ctx, slog.LevelError, "could not destroy session",
			errors.SlogError(errors.Wrap(err, "destroy session")))
	}
}

// Identity returns the identity stored in the session if any.
func (g *Gate) Identity(ctx context.Context) (models.Identity, bool) {
	identity, ok := g.sessionManager.Get(ctx, string(identitySessionKey)).(models.Identity)
	if !ok || identity.Username == "" {
		return models.Identity{}, false
	}
	if token := g.sessionManager.GetString(ctx, string(tokenSessionKey)); token != "" {
		identity.Token = token
	}
	return identity, true
}

// RequireRole returns [ErrForbidden] unless the identity has role.
func RequireRole(identity models.Identity, role models.Role) error {
	if identity.Role != role {
		return errors.Wrap(ErrForbidden, "role required",
			slog.String("required", string(role)), slog.String("role", string(identity.Role)))
	}
	return nil
}

// Authorize returns [ErrForbidden] unless the role of the identity grants permission.
func Authorize(identity models.Identity, permission models.Permission) error {
	if !identity.Role.Can(permission) {
		return errors.Wrap(ErrForbidden, "permission required",
			slog.String("permission", string(permission)), slog.String("role", string(identity.Role)))
	}
	return nil
}
