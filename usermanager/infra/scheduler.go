package infra

import (
	"sync"
	"time"

	"user-manager/usermanager/domain"

	"github.com/sirupsen/logrus"
)

// Scheduler executa tarefas em ordem FIFO, uma por vez, com pelo menos
// `interval` entre o início de uma e o início da próxima.
//
// A cabeça da fila é a tarefa em execução (ou a próxima a executar); ela só sai
// da fila quando termina. Assim Len() conta pendentes + a que está rodando, e a
// capacidade vale para as duas.
//
// Clear incrementa a geração: timers de gerações anteriores são ignorados. A
// tarefa que já estava rodando continua contando como em voo, e nada da nova
// geração começa antes de ela terminar.
type Scheduler struct {
	mu       sync.Mutex
	queue    *Queue[domain.Task]
	maxTasks int
	interval time.Duration

	timer *time.Timer
	gen   uint64
	// running: a cabeça da fila da geração atual está executando.
	running bool
	// inFlight: alguma tarefa está executando, de qualquer geração.
	inFlight bool

	log logrus.FieldLogger
}

var _ domain.TaskScheduler = (*Scheduler)(nil)

type SchedulerOption func(*Scheduler)

func WithSchedulerLogger(log logrus.FieldLogger) SchedulerOption {
	return func(s *Scheduler) { s.log = log }
}

func NewScheduler(maxTasks int, interval time.Duration, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		queue:    NewQueue[domain.Task](),
		maxTasks: maxTasks,
		interval: interval,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit enfileira a tarefa. Devolve false (sem enfileirar) quando a fila já
// tem maxTasks tarefas.
//
// Quando a fila estava vazia, a tarefa começa após `interval`.
func (s *Scheduler) Submit(task domain.Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queue.Len() >= s.maxTasks {
		s.log.WithField("task", task.Name).WithField("pending", s.maxTasks).Debug("scheduler full, task rejected")
		return false
	}
	s.queue.Enqueue(task)
	if s.queue.Len() == 1 {
		s.armLocked()
	}
	return true
}

func (s *Scheduler) Len() int {
	return s.queue.Len()
}

// Clear descarta as tarefas ainda não iniciadas, chamando Discard de cada uma
// com domain.ErrTasksCleared. A tarefa em execução termina normalmente, mas a
// conclusão dela não dispara mais nada.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	dropped := s.queue.Drain()
	if s.running && len(dropped) > 0 {
		dropped = dropped[1:]
	}
	s.running = false
	s.mu.Unlock()

	if len(dropped) > 0 {
		s.log.WithField("dropped", len(dropped)).Info("scheduler cleared")
	}
	for _, task := range dropped {
		if task.Discard != nil {
			task.Discard(domain.ErrTasksCleared)
		}
	}
}

// Close descarta tudo que está pendente.
func (s *Scheduler) Close() {
	s.Clear()
}

func (s *Scheduler) armLocked() {
	gen := s.gen
	s.timer = time.AfterFunc(s.interval, func() { s.dispatch(gen) })
}

func (s *Scheduler) dispatch(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.running {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	if s.inFlight {
		// a conclusão da tarefa anterior rearma o timer.
		s.mu.Unlock()
		return
	}
	task, ok := s.queue.Peek()
	if !ok {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.inFlight = true
	s.mu.Unlock()

	s.log.WithField("task_id", task.ID).WithField("task", task.Name).Debug("task started")
	if task.Run != nil {
		task.Run()
	}
	s.complete(gen)
}

func (s *Scheduler) complete(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inFlight = false
	if gen != s.gen {
		// a tarefa já saiu da fila no Clear; só libera quem chegou depois.
		if s.queue.Len() > 0 && s.timer == nil {
			s.armLocked()
		}
		return
	}
	s.running = false
	s.queue.Dequeue()
	if s.queue.Len() > 0 {
		s.armLocked()
	}
}
