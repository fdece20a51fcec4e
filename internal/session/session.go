// Package session issues and verifies the signed, tamper-evident browser
// identity cookie. The cookie value is base64url(payload) "." base64url(hmac);
// any verification failure is treated exactly like an absent cookie, so a
// damaged identity silently becomes a fresh one.
package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rpampin-cresteo/chatbot-widget/internal/logging"
)

// DisplayNameCookie is the advisory, script-readable display-name cookie.
// It is not part of the trust boundary.
const DisplayNameCookie = "cw_display_name"

var base64urlPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Identity is the per-browser session payload carried in the signed cookie.
type Identity struct {
	UserID string `json:"userId"`
}

// Manager signs, verifies and refreshes session cookies.
type Manager struct {
	cookieName string
	secret     []byte
	maxAge     time.Duration
	production bool
	logger     logging.Logger
	onMint     func()
}

// OnMint registers a callback invoked each time a fresh identity is minted.
func (m *Manager) OnMint(fn func()) {
	m.onMint = fn
}

// NewManager builds a session manager. The secret is validated at config
// load time; this constructor assumes it is usable.
func NewManager(cookieName, secret string, maxAge time.Duration, production bool, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Manager{
		cookieName: cookieName,
		secret:     []byte(secret),
		maxAge:     maxAge,
		production: production,
		logger:     logger,
	}
}

// Ensure returns the request's verified identity, minting and setting a fresh
// one when the cookie is absent, malformed or tampered with. An existing valid
// identity is never replaced.
func (m *Manager) Ensure(w http.ResponseWriter, r *http.Request) Identity {
	if cookie, err := r.Cookie(m.cookieName); err == nil {
		if identity, ok := m.decode(cookie.Value); ok && identity.UserID != "" {
			return identity
		}
		m.logger.Debug("session cookie failed verification, minting new identity")
	}

	fresh := Identity{UserID: uuid.NewString()}
	if m.onMint != nil {
		m.onMint()
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    m.encode(fresh),
		Path:     "/",
		MaxAge:   int(m.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   m.secure(r),
		SameSite: http.SameSiteLaxMode,
	})
	return fresh
}

func (m *Manager) secure(r *http.Request) bool {
	if r.TLS != nil || m.production {
		return true
	}
	// Behind a TLS-terminating proxy the connection arrives as plain HTTP;
	// the forwarded proto tells us what the browser actually sees.
	proto := r.Header.Get("X-Forwarded-Proto")
	if i := strings.IndexByte(proto, ','); i >= 0 {
		proto = proto[:i]
	}
	return strings.EqualFold(strings.TrimSpace(proto), "https")
}

func (m *Manager) encode(identity Identity) string {
	payload, _ := json.Marshal(identity)
	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + m.sign(encoded)
}

func (m *Manager) sign(value string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (m *Manager) decode(value string) (Identity, bool) {
	encoded, signature, found := strings.Cut(value, ".")
	if !found || encoded == "" || signature == "" {
		return Identity{}, false
	}
	if !base64urlPattern.MatchString(encoded) {
		return Identity{}, false
	}
	if !hmac.Equal([]byte(m.sign(encoded)), []byte(signature)) {
		return Identity{}, false
	}
	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Identity{}, false
	}
	var identity Identity
	if err := json.Unmarshal(payload, &identity); err != nil {
		return Identity{}, false
	}
	return identity, true
}

// ReadDisplayName returns the advisory display name, if any.
func ReadDisplayName(r *http.Request) string {
	cookie, err := r.Cookie(DisplayNameCookie)
	if err != nil {
		return ""
	}
	decoded, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return ""
	}
	return string(decoded)
}

// WriteDisplayName sets or, when name is empty, deletes the advisory
// display-name cookie. The cookie is intentionally readable by scripts.
func (m *Manager) WriteDisplayName(w http.ResponseWriter, r *http.Request, name string) {
	if name == "" {
		http.SetCookie(w, &http.Cookie{
			Name:   DisplayNameCookie,
			Value:  "",
			Path:   "/",
			MaxAge: -1,
		})
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     DisplayNameCookie,
		Value:    base64.RawURLEncoding.EncodeToString([]byte(name)),
		Path:     "/",
		MaxAge:   int(m.maxAge.Seconds()),
		HttpOnly: false,
		Secure:   m.secure(r),
		SameSite: http.SameSiteLaxMode,
	})
}
