/*
Package access provides authentication for the document routes.

A request is authenticated with a token, passed either as

	Authorization: Bearer <token>

header or as _token query parameter. The token is either the static token stored
with a user in the users resource, or a JSON web token issued by the login route.

The authenticated user is added to the request context and retrieved with

	user := UserFromContext(ctx)
*/
package access

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/jsonserver/core/document"
	"github.com/relabs-tech/jsonserver/core/logger"
	"github.com/relabs-tech/jsonserver/core/service"
)

// contextKey is the type for context keys. Go linter does not like plain strings
type contextKey string

// the predefined context key
const (
	contextKeyUser contextKey = "_user_"
)

const (
	// TokenQueryParameter is the query parameter which carries a token
	TokenQueryParameter = "_token"
	// LoginRoute is the route of the login handler, relative to the path prefix
	LoginRoute = "/auth/login"

	defaultTokenTTL = 24 * time.Hour
	issuer          = "jsonserver"
)

// UserStore looks up users for authentication. It is implemented by *service.Service.
type UserStore interface {
	Login(username, password string) (document.Record, bool)
	UserByToken(token string) (document.Record, bool)
	UserByID(id string) (document.Record, bool)
}

var _ UserStore = (*service.Service)(nil)

// Builder is a builder helper for the Authenticator
type Builder struct {
	// Users is the user store. This is mandatory.
	Users UserStore
	// Secret is the HMAC secret for issued tokens. If empty, a random secret is
	// generated, and tokens do not survive a restart.
	Secret []byte
	// TokenTTL is the lifetime of issued tokens. Defaults to 24 hours.
	TokenTTL time.Duration
	// Prefix is the path prefix of the document routes, e.g. "/api"
	Prefix string
}

// Authenticator authenticates requests against the users of a document
type Authenticator struct {
	users    UserStore
	secret   []byte
	tokenTTL time.Duration
	prefix   string
}

// New returns a new authenticator
func New(bb *Builder) (*Authenticator, error) {
	if bb.Users == nil {
		return nil, errors.New("user store is missing")
	}
	secret := bb.Secret
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("cannot generate secret: %w", err)
		}
	}
	ttl := bb.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &Authenticator{
		users:    bb.Users,
		secret:   secret,
		tokenTTL: ttl,
		prefix:   strings.TrimSuffix(bb.Prefix, "/"),
	}, nil
}

// LoginPath returns the full path of the login route
func (a *Authenticator) LoginPath() string {
	return a.prefix + LoginRoute
}

// IssueToken returns a signed token for the user
func (a *Authenticator) IssueToken(user document.Record) (string, error) {
	id, ok := document.IDString(user["id"])
	if !ok {
		return "", errors.New("user has no id")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Authenticate returns the user for a token. Stored user tokens take precedence
// over issued tokens.
func (a *Authenticator) Authenticate(token string) (document.Record, bool) {
	if token == "" {
		return nil, false
	}
	if user, ok := a.users.UserByToken(token); ok {
		return user, true
	}
	if strings.Count(token, ".") != 2 {
		return nil, false
	}
	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !parsed.Valid || claims.Issuer != issuer {
		return nil, false
	}
	return a.users.UserByID(claims.Subject)
}

// isOpen returns true for paths which do not need a token
func (a *Authenticator) isOpen(r *http.Request) bool {
	return r.URL.Path == "/" || r.URL.Path == a.LoginPath()
}

// Middleware returns a middleware which rejects requests without a valid token
// with http.StatusUnauthorized. The index page and the login route are open.
func (a *Authenticator) Middleware() mux.MiddlewareFunc {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a.isOpen(r) {
				h.ServeHTTP(w, r)
				return
			}
			token := extractToken(r)
			user, ok := a.Authenticate(token)
			if !ok {
				logger.FromContext(r.Context()).Infoln("rejected unauthorized request for", r.URL.Path)
				writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"code": http.StatusUnauthorized, "msg": "Unauthorized"})
				return
			}
			ctx := ContextWithUser(r.Context(), user)
			if id, ok := document.IDString(user["id"]); ok {
				ctx, _ = logger.ContextWithLoggerIdentity(ctx, id)
			}
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// StripTokenMiddleware removes the _token query parameter, so that it is not taken for
// a filter condition when authentication is disabled.
func StripTokenMiddleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stripTokenParameter(r)
		h.ServeHTTP(w, r)
	})
}

// extractToken returns the bearer token or the _token query parameter. The query
// parameter is always removed from the request.
func extractToken(r *http.Request) string {
	queryToken := stripTokenParameter(r)
	bearer := r.Header.Get("Authorization")
	if i := strings.IndexByte(bearer, ' '); i > 0 {
		if token := strings.TrimSpace(bearer[i+1:]); token != "" {
			return token
		}
	}
	return queryToken
}

func stripTokenParameter(r *http.Request) string {
	query := r.URL.Query()
	if _, ok := query[TokenQueryParameter]; !ok {
		return ""
	}
	token := query.Get(TokenQueryParameter)
	query.Del(TokenQueryParameter)
	r.URL.RawQuery = query.Encode()
	return token
}

type loginRequest struct {
	Username interface{} `json:"username"`
	Password interface{} `json:"password"`
}

type loginResponse struct {
	StatusCode int             `json:"status_code"`
	User       document.Record `json:"user,omitempty"`
	Token      string          `json:"token,omitempty"`
	Msg        string          `json:"msg,omitempty"`
}

// HandleLoginRoute adds the login route to the router. The router must not carry the
// path prefix already.
func (a *Authenticator) HandleLoginRoute(router *mux.Router) {
	logger.Default().Debugln("access")
	logger.Default().Debugln("  handle route:", a.LoginPath(), "POST")
	router.HandleFunc(a.LoginPath(), func(w http.ResponseWriter, r *http.Request) {
		rlog := logger.FromContext(r.Context())
		rlog.Infoln("called route for", r.URL, r.Method)

		var body loginRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		username, _ := document.IDString(body.Username)
		password, _ := document.IDString(body.Password)
		user, ok := a.users.Login(username, password)
		if !ok {
			writeJSON(w, http.StatusOK, loginResponse{StatusCode: http.StatusUnauthorized, Msg: "Unauthorized"})
			return
		}
		token, err := a.IssueToken(user)
		if err != nil {
			rlog.WithError(err).Errorf("Error 4723: cannot issue token")
			http.Error(w, "Error 4723", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, loginResponse{StatusCode: http.StatusOK, User: user, Token: token})
	}).Methods(http.MethodPost, http.MethodOptions)
}

// ContextWithUser returns a new context with the authenticated user added to it
func ContextWithUser(ctx context.Context, user document.Record) context.Context {
	return context.WithValue(ctx, contextKeyUser, user)
}

// UserFromContext retrieves the authenticated user from the context
func UserFromContext(ctx context.Context) document.Record {
	user, ok := ctx.Value(contextKeyUser).(document.Record)
	if ok {
		return user
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	jsonData, _ := json.Marshal(body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(jsonData)
}
