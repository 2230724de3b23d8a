package sandbox

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"strconv"
	"sync"

	"user-manager/usermanager/domain"

	"github.com/sirupsen/logrus"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

// API emula os endpoints de usuário da plataforma em memória.
type API struct {
	token string
	log   logrus.FieldLogger

	mu    sync.RWMutex
	users map[string]domain.User
	order []string

	mux *http.ServeMux
}

type APIOption func(*API)

func WithAPILogger(log logrus.FieldLogger) APIOption {
	return func(a *API) { a.log = log }
}

// NewAPI cria a API. token vazio desliga a checagem de Api-Token.
func NewAPI(token string, opts ...APIOption) *API {
	a := &API{
		token: token,
		log:   logrus.StandardLogger(),
		users: make(map[string]domain.User),
		mux:   http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.mux.HandleFunc("POST /v3/users", a.createUser)
	a.mux.HandleFunc("GET /v3/users", a.listUsers)
	a.mux.HandleFunc("GET /v3/users/{id}", a.getUser)
	a.mux.HandleFunc("PUT /v3/users/{id}", a.updateUser)
	return a
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if a.token != "" && r.Header.Get(domain.HeaderAPIToken) != a.token {
		writeError(w, http.StatusUnauthorized, CodeInvalidToken, "invalid api token")
		return
	}
	a.mux.ServeHTTP(w, r)
}

// Seed grava usuários direto, sem passar pela API.
func (a *API) Seed(users ...domain.User) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, u := range users {
		a.putLocked(u)
	}
}

func (a *API) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.users)
}

func (a *API) putLocked(u domain.User) {
	if _, ok := a.users[u.UserID]; !ok {
		a.order = append(a.order, u.UserID)
	}
	a.users[u.UserID] = u
}

type createBody struct {
	UserID     string `json:"user_id"`
	Nickname   string `json:"nickname"`
	ProfileURL string `json:"profile_url"`
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	var body createBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidParameter, "invalid json body")
		return
	}
	if body.UserID == "" || body.Nickname == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidParameter, "user_id and nickname are required")
		return
	}

	user := domain.User{UserID: body.UserID, Nickname: body.Nickname, ProfileURL: body.ProfileURL}

	a.mu.Lock()
	if _, exists := a.users[user.UserID]; exists {
		a.mu.Unlock()
		writeError(w, http.StatusBadRequest, CodeAlreadyExists, fmt.Sprintf("user %q already exists", user.UserID))
		return
	}
	a.putLocked(user)
	a.mu.Unlock()

	a.log.WithField("user_id", user.UserID).Debug("sandbox: user created")
	writeJSON(w, http.StatusOK, user)
}

type updateBody struct {
	Nickname   *string `json:"nickname"`
	ProfileURL *string `json:"profile_url"`
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var body updateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidParameter, "invalid json body")
		return
	}

	a.mu.Lock()
	user, ok := a.users[id]
	if !ok {
		a.mu.Unlock()
		writeError(w, http.StatusNotFound, CodeNotFound, fmt.Sprintf("user %q not found", id))
		return
	}
	if body.Nickname != nil {
		user.Nickname = *body.Nickname
	}
	if body.ProfileURL != nil {
		user.ProfileURL = *body.ProfileURL
	}
	a.putLocked(user)
	a.mu.Unlock()

	writeJSON(w, http.StatusOK, user)
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	a.mu.RLock()
	user, ok := a.users[id]
	a.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, CodeNotFound, fmt.Sprintf("user %q not found", id))
		return
	}
	writeCacheable(w, r, user)
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxListLimit {
			writeError(w, http.StatusBadRequest, CodeInvalidParameter, "limit must be between 1 and 100")
			return
		}
		limit = n
	}
	nickname := r.URL.Query().Get("nickname")

	list := domain.UserList{Users: []domain.User{}}
	a.mu.RLock()
	for _, id := range a.order {
		if len(list.Users) == limit {
			break
		}
		u := a.users[id]
		if nickname == "" || u.Nickname == nickname {
			list.Users = append(list.Users, u)
		}
	}
	a.mu.RUnlock()

	writeCacheable(w, r, list)
}

// writeCacheable responde com ETag e devolve 304 quando If-None-Match bate.
func writeCacheable(w http.ResponseWriter, r *http.Request, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeUnavailable, "encode response")
		return
	}
	h := fnv.New64a()
	_, _ = h.Write(raw)
	etag := fmt.Sprintf(`"%x"`, h.Sum64())

	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}
