package application

import (
	"context"
	"sync"
)

// Future é o resultado de uma operação assíncrona. Resolve exatamente uma vez.
type Future[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func resolved[T any](v T, err error) *Future[T] {
	f := newFuture[T]()
	f.resolve(v, err)
	return f
}

func failed[T any](err error) *Future[T] {
	var zero T
	return resolved(zero, err)
}

// resolve só tem efeito na primeira chamada.
func (f *Future[T]) resolve(v T, err error) {
	f.once.Do(func() {
		f.val, f.err = v, err
		close(f.done)
	})
}

// Done fecha quando o resultado estiver disponível.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Result bloqueia até o resultado.
func (f *Future[T]) Result() (T, error) {
	<-f.done
	return f.val, f.err
}

// Wait bloqueia até o resultado ou até ctx encerrar. Encerrar ctx não cancela a operação.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then entrega o resultado a fn em outra goroutine, mesmo se já resolvido.
func (f *Future[T]) Then(fn func(T, error)) {
	go func() {
		<-f.done
		fn(f.val, f.err)
	}()
}
