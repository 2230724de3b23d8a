package infra

import (
	"sync"

	"user-manager/usermanager/domain"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultUserCacheCost é o teto padrão (5 MiB).
	DefaultUserCacheCost int64 = 5 * 1024 * 1024

	usersKey = "users"
	// overhead aproximado por registro (três cabeçalhos de string).
	userOverhead = 48
)

// UserCache guarda a coleção inteira de usuários sob uma única chave de um
// CostStore. Cada upsert grava uma coleção nova; se ela passar do teto, a
// coleção toda é despejada (nunca usuários individuais).
type UserCache struct {
	mu    sync.Mutex
	store *CostStore[string, []domain.User]
	log   logrus.FieldLogger
}

var _ domain.UserStore = (*UserCache)(nil)

type UserCacheOption func(*UserCache)

func WithUserCacheLogger(log logrus.FieldLogger) UserCacheOption {
	return func(c *UserCache) { c.log = log }
}

func NewUserCache(costLimit int64, opts ...UserCacheOption) *UserCache {
	c := &UserCache{
		store: NewCostStore[string, []domain.User](costLimit),
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upsert troca o registro com o mesmo UserID ou acrescenta no fim.
func (c *UserCache) Upsert(u domain.User) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, _ := c.store.Get(usersKey)
	next := make([]domain.User, len(current), len(current)+1)
	copy(next, current)

	replaced := false
	for i := range next {
		if next[i].UserID == u.UserID {
			next[i] = u
			replaced = true
			break
		}
	}
	if !replaced {
		next = append(next, u)
	}

	if !c.store.Set(usersKey, next, usersCost(next)) {
		c.log.WithField("users", len(next)).Warn("user cache over cost limit, collection evicted")
	}
}

// All devolve uma cópia da coleção (vazia se nunca gravada ou despejada).
func (c *UserCache) All() []domain.User {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, _ := c.store.Get(usersKey)
	out := make([]domain.User, len(current))
	copy(out, current)
	return out
}

func (c *UserCache) ByID(id string) (domain.User, bool) {
	for _, u := range c.All() {
		if u.UserID == id {
			return u, true
		}
	}
	return domain.User{}, false
}

// ByNickname faz match exato de nickname, na ordem da coleção.
func (c *UserCache) ByNickname(nickname string) []domain.User {
	var out []domain.User
	for _, u := range c.All() {
		if u.Nickname == nickname {
			out = append(out, u)
		}
	}
	return out
}

func (c *UserCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Purge()
}

// Purge implementa domain.Purger.
func (c *UserCache) Purge() { c.Clear() }

func usersCost(users []domain.User) int64 {
	var cost int64
	for _, u := range users {
		cost += int64(len(u.UserID)+len(u.Nickname)+len(u.ProfileURL)) + userOverhead
	}
	return cost
}
