package application

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"

	"user-manager/usermanager/domain"
)

// fakeTransport emula a API de usuários em memória e conta as chamadas.
type fakeTransport struct {
	mu     sync.Mutex
	users  map[string]domain.User
	calls  []domain.Call
	starts []time.Time

	failIDs map[string]error
	// quando não nil, GETs de usuário avisam em entered e esperam release.
	entered chan struct{}
	release chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		users:   make(map[string]domain.User),
		failIDs: make(map[string]error),
	}
}

func (f *fakeTransport) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeTransport) Starts() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.starts...)
}

func (f *fakeTransport) seed(u domain.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.UserID] = u
}

func (f *fakeTransport) Do(ctx context.Context, call domain.Call, out any) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.starts = append(f.starts, time.Now())
	entered, release := f.entered, f.release
	f.mu.Unlock()

	u, err := url.Parse(call.URL)
	if err != nil {
		return err
	}
	id := ""
	if rest, ok := strings.CutPrefix(u.Path, "/v3/users/"); ok {
		id = rest
	}

	var resp any
	switch {
	case call.Method == domain.MethodPost:
		uid, _ := call.Params["user_id"].(string)
		if err := f.failIDs[uid]; err != nil {
			return err
		}
		nick, _ := call.Params["nickname"].(string)
		profile, _ := call.Params["profile_url"].(string)
		user := domain.User{UserID: uid, Nickname: nick, ProfileURL: profile}
		f.seed(user)
		resp = user

	case call.Method == domain.MethodPut:
		f.mu.Lock()
		user, ok := f.users[id]
		if !ok {
			f.mu.Unlock()
			return notFound()
		}
		if v, ok := call.Params["nickname"].(string); ok {
			user.Nickname = v
		}
		if v, ok := call.Params["profile_url"].(string); ok {
			user.ProfileURL = v
		}
		f.users[id] = user
		f.mu.Unlock()
		resp = user

	case call.Method == domain.MethodGet && id != "":
		if entered != nil {
			entered <- struct{}{}
			<-release
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		f.mu.Lock()
		user, ok := f.users[id]
		f.mu.Unlock()
		if !ok {
			return notFound()
		}
		resp = user

	default:
		nick, _ := call.Params["nickname"].(string)
		list := domain.UserList{Users: []domain.User{}}
		f.mu.Lock()
		for _, user := range f.users {
			if user.Nickname == nick {
				list.Users = append(list.Users, user)
			}
		}
		f.mu.Unlock()
		resp = list
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func notFound() error {
	return &domain.ServerError{StatusCode: 404, Info: &domain.ErrorInfo{Error: true, Code: 400201, Message: "user not found"}}
}

// fakePurger conta as limpezas do cache de respostas.
type fakePurger struct {
	mu     sync.Mutex
	purges int
}

func (p *fakePurger) Purge() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.purges++
}

func (p *fakePurger) Purges() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.purges
}
