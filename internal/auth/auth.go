package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// MsgMissingAuth is the exact body returned when no usable bearer
// credential accompanies a request.
const MsgMissingAuth = "Missing or invalid Authorization header"

var (
	// ErrInvalidToken means the credential itself was rejected.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUnavailable means the verifier could not be reached at all.
	// Distinct from ErrInvalidToken: endpoints decide whether an identity
	// outage is fatal (503) or downgrades to a demo principal (207).
	ErrUnavailable = errors.New("identity service unavailable")
)

// Principal is the authenticated caller, resolved once per request.
type Principal struct {
	ID          string
	Email       string
	DisplayName string
}

// Demo is true for capability-limited principals substituted during an
// identity outage.
func (p Principal) Demo() bool { return p.ID == DemoPrincipalID }

// DemoPrincipalID marks the substitute principal used when token
// verification cannot be performed.
const DemoPrincipalID = "demo-user"

// DemoPrincipal returns the capability-limited principal substituted on
// identity-provider outage.
func DemoPrincipal() Principal {
	return Principal{ID: DemoPrincipalID, Email: "demo@example.com", DisplayName: "Demo User"}
}

// Verifier validates a bearer token and resolves the caller.
type Verifier interface {
	Verify(ctx context.Context, token string) (Principal, error)
}

// JWTVerifier validates locally-issued HS256 tokens.
type JWTVerifier struct {
	Secret []byte
}

func (v JWTVerifier) Verify(_ context.Context, token string) (Principal, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.Secret, nil
	})
	if err != nil || !parsed.Valid {
		return Principal{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Principal{}, ErrInvalidToken
	}
	p := Principal{ID: sub}
	if email, ok := claims["email"].(string); ok {
		p.Email = email
	}
	if name, ok := claims["name"].(string); ok {
		p.DisplayName = name
	}
	return p, nil
}

// SignJWT issues a signed token with the provided subject and TTL.
func SignJWT(subject, email string, secret []byte, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(ttl).Unix(),
	}
	if email != "" {
		claims["email"] = email
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

type principalKey struct{}

// Options configures per-endpoint auth behavior.
type Options struct {
	// DemoOnOutage substitutes a demo principal when the verifier is
	// unreachable instead of failing 503. Handlers must check
	// Degraded(c) and respond 207 accordingly.
	DemoOnOutage bool
}

// EchoMiddleware builds an Echo middleware that validates bearer tokens
// from the Authorization header or the auth cookie.
func EchoMiddleware(v Verifier, opts Options) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tok := extractToken(c)
			if tok == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, MsgMissingAuth)
			}
			p, err := v.Verify(c.Request().Context(), tok)
			if err != nil {
				if errors.Is(err, ErrUnavailable) {
					if opts.DemoOnOutage {
						setPrincipal(c, DemoPrincipal())
						c.Set("auth_degraded", true)
						return next(c)
					}
					return echo.NewHTTPError(http.StatusServiceUnavailable, "Authentication service unavailable")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
			}
			setPrincipal(c, p)
			return next(c)
		}
	}
}

// Degraded reports whether the current request runs under a substituted
// demo principal.
func Degraded(c echo.Context) bool {
	v, _ := c.Get("auth_degraded").(bool)
	return v
}

// PrincipalFromEcho returns the principal resolved by the middleware.
func PrincipalFromEcho(c echo.Context) (Principal, bool) {
	p, ok := c.Get("principal").(Principal)
	return p, ok
}

// PrincipalFromContext returns the principal stored on a request context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func setPrincipal(c echo.Context, p Principal) {
	c.Set("principal", p)
	c.Set("user_id", p.ID)
	c.SetRequest(c.Request().WithContext(context.WithValue(c.Request().Context(), principalKey{}, p)))
}

func extractToken(c echo.Context) string {
	if h := c.Request().Header.Get("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
		return h[7:]
	}
	if ck, err := c.Cookie("auth"); err == nil {
		return ck.Value
	}
	return ""
}
