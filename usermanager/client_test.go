package usermanager

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"user-manager/config"
	"user-manager/sandbox"
	"user-manager/usermanager/domain"
	"user-manager/usermanager/infra"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSandbox(t *testing.T) (*sandbox.Server, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	log, _ := test.NewNullLogger()
	srv := sandbox.NewServer(ctx, sandbox.Options{Token: "tok", Log: log})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return srv, ts.URL + "/v3"
}

func testConfig(baseURL string) *config.Config {
	cfg := config.Default()
	cfg.API.BaseURL = baseURL
	cfg.Store.Driver = "memory"
	cfg.Limits.RequestInterval = 0
	cfg.Limits.TaskInterval = 5 * time.Millisecond
	cfg.Stats.Enabled = true
	return cfg
}

func newTestClient(t *testing.T, cfg *config.Config, opts ...Option) *Client {
	t.Helper()
	log, _ := test.NewNullLogger()
	c, err := New(cfg, append([]Option{WithLogger(log)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func wait[T any](t *testing.T, f interface {
	Wait(context.Context) (T, error)
}) (T, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return f.Wait(ctx)
}

func TestClient_EndToEndAgainstSandbox(t *testing.T) {
	srv, base := newSandbox(t)
	c := newTestClient(t, testConfig(base))
	ctx := context.Background()

	c.InitApplication(ctx, "app-1", "tok")

	created, err := wait[domain.User](t, c.CreateUser(ctx, domain.CreationParams{UserID: "u1", Nickname: "neo"}))
	require.NoError(t, err)
	assert.Equal(t, "u1", created.UserID)
	assert.Equal(t, 1, srv.API.Len())

	updated, err := wait[domain.User](t, c.UpdateUser(ctx, domain.UpdateParams{UserID: "u1", ProfileURL: domain.String("https://p/u1.png")}))
	require.NoError(t, err)
	assert.Equal(t, domain.User{UserID: "u1", Nickname: "neo", ProfileURL: "https://p/u1.png"}, updated)

	got, err := wait[domain.User](t, c.GetUser(ctx, "u1"))
	require.NoError(t, err)
	assert.Equal(t, updated, got)

	srv.API.Seed(domain.User{UserID: "u2", Nickname: "neo"})
	list, err := wait[[]domain.User](t, c.GetUsers(ctx, "neo"))
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Len(t, c.Users().All(), 2)

	_, err = wait[domain.User](t, c.GetUser(ctx, "ghost"))
	var se *domain.ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 404, se.StatusCode)
	require.NotNil(t, se.Info)
	assert.Equal(t, sandbox.CodeNotFound, se.Info.Code)
}

func TestClient_BatchPartialFailureAgainstSandbox(t *testing.T) {
	srv, base := newSandbox(t)
	srv.API.Seed(domain.User{UserID: "taken", Nickname: "old"})
	c := newTestClient(t, testConfig(base))
	ctx := context.Background()
	c.InitApplication(ctx, "app-1", "tok")

	_, err := wait[[]domain.User](t, c.CreateUsers(ctx, []domain.CreationParams{
		{UserID: "fresh", Nickname: "n"},
		{UserID: "taken", Nickname: "n"},
	}))

	var batchErr *domain.CreateUsersError
	require.ErrorAs(t, err, &batchErr)
	require.Len(t, batchErr.Succeeded, 1)
	assert.Equal(t, "fresh", batchErr.Succeeded[0].UserID)
	require.Len(t, batchErr.Failed, 1)
	assert.Equal(t, "taken", batchErr.Failed[0].UserID)

	_, cached := c.Users().ByID("fresh")
	assert.True(t, cached)
}

func TestClient_WrongTokenSurfacesServerError(t *testing.T) {
	_, base := newSandbox(t)
	c := newTestClient(t, testConfig(base))
	ctx := context.Background()
	c.InitApplication(ctx, "app-1", "wrong")

	_, err := wait[domain.User](t, c.GetUser(ctx, "u1"))
	var se *domain.ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 401, se.StatusCode)
}

func TestClient_GateRejectsSecondReadWithinInterval(t *testing.T) {
	srv, base := newSandbox(t)
	srv.API.Seed(domain.User{UserID: "a", Nickname: "neo"}, domain.User{UserID: "b", Nickname: "smith"})
	cfg := testConfig(base)
	cfg.Limits.RequestInterval = time.Hour
	c := newTestClient(t, cfg)
	ctx := context.Background()
	c.InitApplication(ctx, "app-1", "tok")

	_, err := wait[domain.User](t, c.GetUser(ctx, "a"))
	require.NoError(t, err)
	_, err = wait[domain.User](t, c.GetUser(ctx, "b"))
	assert.ErrorIs(t, err, domain.ErrRateLimited)

	stats, ok := c.Stats.(*infra.MemoryStatsStore)
	require.True(t, ok)
	assert.Equal(t, infra.Counters{Allowed: 1, Denied: 1}, stats.ByOperation()["get_user"])
}

func TestClient_RedisAppStoreSwitchClearsCache(t *testing.T) {
	_, base := newSandbox(t)
	mr := miniredis.RunT(t)
	cfg := testConfig(base)
	cfg.Store.Driver = "redis"
	cfg.Store.Redis.Addr = mr.Addr()
	cfg.Stats.Redis = true
	c := newTestClient(t, cfg)
	ctx := context.Background()

	c.InitApplication(ctx, "app-1", "tok")
	_, err := wait[domain.User](t, c.CreateUser(ctx, domain.CreationParams{UserID: "u1", Nickname: "neo"}))
	require.NoError(t, err)

	stored, err := mr.Get("usermanager:app_id")
	require.NoError(t, err)
	assert.Equal(t, "app-1", stored)
	assert.Equal(t, "2", mr.HGet("usermanager:stats:total", "allowed"), "admission + gate")

	_, err = wait[[]domain.User](t, c.GetUsers(ctx, "neo"))
	require.NoError(t, err)
	require.NotNil(t, c.responses)
	assert.Equal(t, 1, c.responses.Len(), "list response kept for revalidation")

	c.InitApplication(ctx, "app-2", "tok")
	assert.Empty(t, c.Users().All())
	assert.Zero(t, c.responses.Len())
	stored, _ = mr.Get("usermanager:app_id")
	assert.Equal(t, "app-2", stored)
}

func TestClient_LevelDBAppStorePersistsAcrossClients(t *testing.T) {
	_, base := newSandbox(t)
	cfg := testConfig(base)
	cfg.Store.Driver = "leveldb"
	cfg.Store.Path = filepath.Join(t.TempDir(), "state")
	ctx := context.Background()

	log, _ := test.NewNullLogger()
	first, err := New(cfg, WithLogger(log))
	require.NoError(t, err)
	first.InitApplication(ctx, "app-1", "tok")
	require.NoError(t, first.Close())

	store, err := infra.OpenLevelDBAppStore(cfg.Store.Path)
	require.NoError(t, err)
	appID, ok, err := store.LoadAppID(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Close())
	assert.True(t, ok)
	assert.Equal(t, "app-1", appID)
}

func TestClient_UnknownStoreDriver(t *testing.T) {
	cfg := testConfig("http://localhost/v3")
	cfg.Store.Driver = "etcd"

	log, _ := test.NewNullLogger()
	_, err := New(cfg, WithLogger(log))
	assert.ErrorContains(t, err, "unknown store driver")
}
