package domain

import "context"

// Gate é o limitador global de ritmo (uma chamada por intervalo).
//
// Enter consome a vaga ou devolve ErrRateLimited. TryRun faz o mesmo e,
// quando admitido, roda a ação de forma assíncrona.
type Gate interface {
	Enter() error
	TryRun(action func()) error
}

// Task é uma unidade de trabalho do scheduler.
//
// Run bloqueia até a operação terminar (incluindo a chamada de rede).
// Discard é chamado no lugar de Run quando a tarefa é descartada antes de rodar.
type Task struct {
	ID      string
	Name    string
	Run     func()
	Discard func(error)
}

// TaskScheduler executa tarefas em ordem FIFO, uma por vez, com intervalo mínimo
// entre inícios consecutivos.
type TaskScheduler interface {
	// Submit devolve false quando a fila está cheia. Nunca bloqueia.
	Submit(Task) bool
	// Clear descarta as tarefas pendentes (a que está rodando termina normalmente).
	Clear()
	Len() int
}

// UserStore é o cache local de usuários.
type UserStore interface {
	Upsert(User)
	All() []User
	ByID(id string) (User, bool)
	ByNickname(nickname string) []User
	Clear()
}

// AppStore persiste o último app id inicializado entre execuções.
type AppStore interface {
	LoadAppID(ctx context.Context) (string, bool, error)
	StoreAppID(ctx context.Context, appID string) error
	Clear(ctx context.Context) error
	Close() error
}

// Purger é qualquer cache que precise ser esvaziado na troca de aplicação.
type Purger interface {
	Purge()
}
