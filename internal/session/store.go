package session

import (
	"fmt"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-contrib/sessions/memstore"
	"github.com/gin-gonic/gin"
	gsessions "github.com/gorilla/sessions"
)

const (
	keyUserID   = "user_id"
	keyUsername = "username"
	// keyRotate is a save-time flag, never persisted.
	keyRotate = "_rotate"
)

// StoreManager keeps the marker in a gin-contrib/sessions store.
type StoreManager struct {
	opts  Options
	store sessions.Store
}

var _ Manager = (*StoreManager)(nil)

// NewCookieManager stores the marker in a signed client cookie.
func NewCookieManager(o Options) *StoreManager {
	return newStoreManager(o, cookie.NewStore(o.Secret))
}

// NewMemoryManager stores the marker in process memory keyed by a cookie id.
func NewMemoryManager(o Options) *StoreManager {
	return newStoreManager(o, memstore.NewStore(o.Secret))
}

func newStoreManager(o Options, store sessions.Store) *StoreManager {
	store.Options(cookieOptions(o, o.maxAgeSeconds()))
	return &StoreManager{opts: o, store: rotatingStore{Store: store}}
}

// rotatingStore drops the stored session and issues a new id when a session is
// saved with keyRotate set. Stores without server-side ids are unaffected.
type rotatingStore struct {
	sessions.Store
}

// Get goes through the request registry so that sessions are bound to the
// wrapper and their Save lands here.
func (s rotatingStore) Get(r *http.Request, name string) (*gsessions.Session, error) {
	return gsessions.GetRegistry(r).Get(s, name)
}

func (s rotatingStore) New(r *http.Request, name string) (*gsessions.Session, error) {
	inner, err := s.Store.New(r, name)
	gs := gsessions.NewSession(s, name)
	if inner != nil {
		gs.ID = inner.ID
		gs.Values = inner.Values
		gs.Options = inner.Options
		gs.IsNew = inner.IsNew
	}
	return gs, err
}

func (s rotatingStore) Save(r *http.Request, w http.ResponseWriter, gs *gsessions.Session) error {
	rotate, _ := gs.Values[keyRotate].(bool)
	delete(gs.Values, keyRotate)
	if !rotate || gs.ID == "" {
		return s.Store.Save(r, w, gs)
	}

	stale := gsessions.NewSession(s.Store, gs.Name())
	stale.ID = gs.ID
	opts := gsessions.Options{MaxAge: -1}
	if gs.Options != nil {
		opts = *gs.Options
		opts.MaxAge = -1
	}
	stale.Options = &opts
	// the expired cookie is superseded by the new one below
	if err := s.Store.Save(r, discardResponse{}, stale); err != nil {
		return fmt.Errorf("drop previous session: %w", err)
	}

	gs.ID = ""
	return s.Store.Save(r, w, gs)
}

// discardResponse swallows the headers of a save whose cookie must not reach the client.
type discardResponse struct{}

func (discardResponse) Header() http.Header         { return http.Header{} }
func (discardResponse) Write(b []byte) (int, error) { return len(b), nil }
func (discardResponse) WriteHeader(int)             {}

func cookieOptions(o Options, maxAge int) sessions.Options {
	return sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: sameSite,
	}
}

func (m *StoreManager) Middleware() gin.HandlersChain {
	return gin.HandlersChain{sessions.Sessions(m.opts.Name, m.store), m.load}
}

func (m *StoreManager) load(c *gin.Context) {
	s := sessions.Default(c)
	id, ok := s.Get(keyUserID).(int)
	name, _ := s.Get(keyUsername).(string)
	if ok && id > 0 {
		setPrincipal(c, Principal{UserID: id, Username: name})
	}
	c.Next()
}

func (m *StoreManager) Bind(c *gin.Context, p Principal) error {
	s := sessions.Default(c)
	s.Clear()
	s.Set(keyUserID, p.UserID)
	s.Set(keyUsername, p.Username)
	// a fresh id on every login, so an id planted before login is worthless after it
	s.Set(keyRotate, true)
	if err := s.Save(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	setPrincipal(c, p)
	return nil
}

func (m *StoreManager) Clear(c *gin.Context) (bool, error) {
	_, had := FromContext(c.Request.Context())

	s := sessions.Default(c)
	s.Clear()
	s.Options(cookieOptions(m.opts, -1))
	if err := s.Save(); err != nil {
		return had, fmt.Errorf("clear session: %w", err)
	}
	return had, nil
}
