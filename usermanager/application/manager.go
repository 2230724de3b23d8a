package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"user-manager/usermanager/domain"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultMaxBatch   = 10
	DefaultQueryLimit = 100
)

// Nomes de operação usados em logs e estatísticas.
const (
	OpCreateUser = "create_user"
	OpUpdateUser = "update_user"
	OpGetUser    = "get_user"
	OpGetUsers   = "get_users"
)

// Config reúne as dependências do Manager.
//
// Transport, Gate, Scheduler, Users e AppStore são obrigatórios.
// Responses e Stats são opcionais.
type Config struct {
	Transport domain.Transport
	Gate      domain.Gate
	Scheduler domain.TaskScheduler
	Users     domain.UserStore
	AppStore  domain.AppStore
	Responses domain.Purger
	Stats     domain.StatsStore
	Log       logrus.FieldLogger

	Routes     Routes
	MaxBatch   int
	QueryLimit int
}

type session struct {
	appID string
	token string
	// epoch muda a cada troca de aplicação; respostas de uma época anterior
	// não entram no cache.
	epoch uint64
}

// Manager orquestra as operações de usuário.
//
// Escritas de criação passam pelo Scheduler (admissão + espaçamento) e depois
// pelo Gate. Updates e leituras passam só pelo Gate. Todo sucesso que traz um
// usuário é gravado no cache local.
type Manager struct {
	transport domain.Transport
	gate      domain.Gate
	scheduler domain.TaskScheduler
	users     domain.UserStore
	appStore  domain.AppStore
	responses domain.Purger
	stats     domain.StatsStore
	log       logrus.FieldLogger

	routes     Routes
	maxBatch   int
	queryLimit int

	mu    sync.RWMutex
	sess  *session
	epoch uint64

	fetches singleflight.Group
}

func New(cfg Config) *Manager {
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = DefaultMaxBatch
	}
	if cfg.QueryLimit <= 0 {
		cfg.QueryLimit = DefaultQueryLimit
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	return &Manager{
		transport:  cfg.Transport,
		gate:       cfg.Gate,
		scheduler:  cfg.Scheduler,
		users:      cfg.Users,
		appStore:   cfg.AppStore,
		responses:  cfg.Responses,
		stats:      cfg.Stats,
		log:        cfg.Log,
		routes:     cfg.Routes,
		maxBatch:   cfg.MaxBatch,
		queryLimit: cfg.QueryLimit,
	}
}

// InitApplication define a aplicação ativa.
//
// Se o app id persistido for outro, o estado local da aplicação anterior é
// descartado antes (cache, fila, respostas, persistência). Erros de
// persistência só são logados.
func (m *Manager) InitApplication(ctx context.Context, appID, apiToken string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	log := m.log.WithField("app_id", appID)

	stored, ok, err := m.appStore.LoadAppID(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to load stored application id")
	}
	if ok && stored != appID {
		log.WithField("previous_app_id", stored).Info("application changed, clearing local state")
		m.resetLocked(ctx)
		m.epoch++
	}

	if err := m.appStore.StoreAppID(ctx, appID); err != nil {
		log.WithError(err).Warn("failed to persist application id")
	}
	m.sess = &session{appID: appID, token: apiToken, epoch: m.epoch}
}

func (m *Manager) resetLocked(ctx context.Context) {
	m.users.Clear()
	m.scheduler.Clear()
	if m.responses != nil {
		m.responses.Purge()
	}
	if err := m.appStore.Clear(ctx); err != nil {
		m.log.WithError(err).Warn("failed to clear stored application id")
	}
}

// AppID devolve a aplicação ativa ("" antes de InitApplication).
func (m *Manager) AppID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.sess == nil {
		return ""
	}
	return m.sess.appID
}

// Users expõe o cache local.
func (m *Manager) Users() domain.UserStore { return m.users }

// Close descarta as criações ainda na fila.
func (m *Manager) Close() {
	m.scheduler.Clear()
}

// remember grava os usuários no cache se a sessão que os buscou ainda for a
// ativa. Devolve false quando a aplicação mudou no meio do caminho.
func (m *Manager) remember(sess session, users ...domain.User) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.sess == nil || m.sess.epoch != sess.epoch {
		return false
	}
	for _, u := range users {
		m.users.Upsert(u)
	}
	return true
}

func (m *Manager) current() (session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.sess == nil {
		return session{}, domain.ErrNotInitialized
	}
	return *m.sess, nil
}

// CreateUser enfileira a criação. Com a fila cheia, falha na hora com
// domain.ErrRequestsExceeded, sem rede e sem consumir o gate.
func (m *Manager) CreateUser(ctx context.Context, params domain.CreationParams) *Future[domain.User] {
	sess, err := m.current()
	if err != nil {
		return failed[domain.User](err)
	}
	if err := params.Validate(); err != nil {
		return failed[domain.User](err)
	}
	target, err := m.routes.Users(sess.appID)
	if err != nil {
		return failed[domain.User](err)
	}

	req := domain.NewRequest[domain.User](domain.MethodPost, target, sess.token, params.Params())
	f := newFuture[domain.User]()
	log := m.log.WithField("op", OpCreateUser).WithField("user_id", params.UserID)

	task := domain.Task{
		ID:   uuid.NewString(),
		Name: OpCreateUser,
		Run: func() {
			if err := m.gate.Enter(); err != nil {
				m.record(ctx, sess.appID, OpCreateUser, domain.StageGate, false)
				f.resolve(domain.User{}, err)
				return
			}
			m.record(ctx, sess.appID, OpCreateUser, domain.StageGate, true)

			user, err := domain.Send(ctx, m.transport, req)
			if err != nil {
				log.WithError(err).Debug("create failed")
				f.resolve(domain.User{}, err)
				return
			}
			if !m.remember(sess, user) {
				log.Debug("application changed, created user not cached")
			}
			f.resolve(user, nil)
		},
		Discard: func(err error) { f.resolve(domain.User{}, err) },
	}

	if !m.scheduler.Submit(task) {
		m.record(ctx, sess.appID, OpCreateUser, domain.StageAdmission, false)
		log.Debug("create rejected, too many pending requests")
		f.resolve(domain.User{}, domain.ErrRequestsExceeded)
		return f
	}
	m.record(ctx, sess.appID, OpCreateUser, domain.StageAdmission, true)
	return f
}

// CreateUsers cria até MaxBatch usuários. Se todos derem certo, devolve os
// usuários na ordem de entrada; caso contrário devolve *domain.CreateUsersError
// com os dois lados (sem desfazer os criados).
func (m *Manager) CreateUsers(ctx context.Context, list []domain.CreationParams) *Future[[]domain.User] {
	if len(list) > m.maxBatch {
		return failed[[]domain.User](errors.Wrapf(domain.ErrRequestsExceeded, "%d users in one batch", len(list)))
	}
	if len(list) == 0 {
		return resolved([]domain.User{}, nil)
	}
	if _, err := m.current(); err != nil {
		return failed[[]domain.User](err)
	}

	pending := make([]*Future[domain.User], len(list))
	for i, p := range list {
		pending[i] = m.CreateUser(ctx, p)
	}

	f := newFuture[[]domain.User]()
	go func() {
		var batchErr domain.CreateUsersError
		for i, uf := range pending {
			u, err := uf.Result()
			if err != nil {
				batchErr.Failed = append(batchErr.Failed, list[i])
				batchErr.Causes = append(batchErr.Causes, err)
				continue
			}
			batchErr.Succeeded = append(batchErr.Succeeded, u)
		}
		if len(batchErr.Failed) > 0 {
			m.log.WithField("op", OpCreateUser).
				WithField("failed", len(batchErr.Failed)).
				WithField("succeeded", len(batchErr.Succeeded)).
				Info("batch create partially failed")
			f.resolve(nil, &batchErr)
			return
		}
		f.resolve(batchErr.Succeeded, nil)
	}()
	return f
}

// UpdateUser envia a atualização se o gate permitir; não passa pela fila.
func (m *Manager) UpdateUser(ctx context.Context, params domain.UpdateParams) *Future[domain.User] {
	sess, err := m.current()
	if err != nil {
		return failed[domain.User](err)
	}
	if err := params.Validate(); err != nil {
		return failed[domain.User](err)
	}
	target, err := m.routes.User(sess.appID, params.UserID)
	if err != nil {
		return failed[domain.User](err)
	}

	req := domain.NewRequest[domain.User](domain.MethodPut, target, sess.token, params.Params())
	f := newFuture[domain.User]()

	err = m.gate.TryRun(func() {
		user, err := domain.Send(ctx, m.transport, req)
		if err != nil {
			f.resolve(domain.User{}, err)
			return
		}
		m.remember(sess, user)
		f.resolve(user, nil)
	})
	m.record(ctx, sess.appID, OpUpdateUser, domain.StageGate, err == nil)
	if err != nil {
		f.resolve(domain.User{}, err)
	}
	return f
}

// GetUser responde do cache quando possível; senão busca no servidor.
//
// Buscas simultâneas pelo mesmo id viram uma só chamada (e uma só entrada no gate).
// A busca compartilhada não herda o cancelamento de quem a iniciou; o limite de
// tempo é o do transporte.
func (m *Manager) GetUser(ctx context.Context, userID string) *Future[domain.User] {
	sess, err := m.current()
	if err != nil {
		return failed[domain.User](err)
	}
	if userID == "" {
		return failed[domain.User](domain.ErrUserIDEmpty)
	}
	if u, ok := m.users.ByID(userID); ok {
		m.log.WithField("op", OpGetUser).WithField("user_id", userID).Debug("cache hit")
		return resolved(u, nil)
	}
	target, err := m.routes.User(sess.appID, userID)
	if err != nil {
		return failed[domain.User](err)
	}

	req := domain.NewRequest[domain.User](domain.MethodGet, target, sess.token, nil)
	f := newFuture[domain.User]()

	fetchCtx := context.WithoutCancel(ctx)
	go func() {
		key := fmt.Sprintf("%d/%s/%s", sess.epoch, sess.appID, userID)
		v, err, _ := m.fetches.Do(key, func() (any, error) {
			if err := m.gate.Enter(); err != nil {
				m.record(fetchCtx, sess.appID, OpGetUser, domain.StageGate, false)
				return domain.User{}, err
			}
			m.record(fetchCtx, sess.appID, OpGetUser, domain.StageGate, true)

			user, err := domain.Send(fetchCtx, m.transport, req)
			if err != nil {
				return domain.User{}, err
			}
			m.remember(sess, user)
			return user, nil
		})
		f.resolve(v.(domain.User), err)
	}()
	return f
}

// GetUsers busca por nickname exato. Se a busca falhar (inclusive por gate),
// devolve o que houver no cache para o nickname; só falha se o cache estiver vazio.
func (m *Manager) GetUsers(ctx context.Context, nickname string) *Future[[]domain.User] {
	if nickname == "" {
		return failed[[]domain.User](domain.ErrNicknameEmpty)
	}
	sess, err := m.current()
	if err != nil {
		return failed[[]domain.User](err)
	}
	target, err := m.routes.Users(sess.appID)
	if err != nil {
		return failed[[]domain.User](err)
	}

	snapshot := m.users.ByNickname(nickname)
	req := domain.NewRequest[domain.UserList](domain.MethodGet, target, sess.token, map[string]any{
		"nickname": nickname,
		"limit":    m.queryLimit,
	})
	f := newFuture[[]domain.User]()
	log := m.log.WithField("op", OpGetUsers).WithField("nickname", nickname)

	fallback := func(err error) {
		if len(snapshot) > 0 {
			log.WithError(err).Debug("serving cached users")
			f.resolve(snapshot, nil)
			return
		}
		f.resolve(nil, err)
	}

	err = m.gate.TryRun(func() {
		list, err := domain.Send(ctx, m.transport, req)
		if err != nil {
			fallback(err)
			return
		}
		m.remember(sess, list.Users...)
		users := list.Users
		if users == nil {
			users = []domain.User{}
		}
		f.resolve(users, nil)
	})
	m.record(ctx, sess.appID, OpGetUsers, domain.StageGate, err == nil)
	if err != nil {
		fallback(err)
	}
	return f
}

func (m *Manager) record(ctx context.Context, appID, op, stage string, allowed bool) {
	if m.stats == nil {
		return
	}
	err := m.stats.Record(ctx, domain.StatsEvent{
		Key:       domain.Key(appID),
		Allowed:   allowed,
		Stage:     stage,
		Operation: op,
		At:        time.Now(),
	})
	if err != nil {
		m.log.WithError(err).Warn("failed to record stats event")
	}
}
