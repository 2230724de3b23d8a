package domain

import (
	"context"
	"time"
)

type Key string

// Estágios em que uma decisão de admissão é tomada.
const (
	StageGate      = "gate"
	StageAdmission = "admission"
	StageThrottle  = "throttle"
)

// StatsEvent representa uma decisão allow/deny.
//
// Operation é genérico: no cliente é o nome da operação (create_user, get_users),
// no sandbox é "METHOD path".
//
// Observação: cuidado com cardinalidade ao usar Key (app id, token) em bases como Redis.
type StatsEvent struct {
	Key       Key
	Allowed   bool
	Stage     string
	Operation string

	At time.Time
}

// StatsStore é a estratégia de persistência das estatísticas.
//
// Quem chama trata erro como best-effort (não derruba a operação).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
