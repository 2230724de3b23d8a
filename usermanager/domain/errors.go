package domain

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// --- Validação e estado do cliente ---

var (
	ErrNotInitialized = errors.New("call InitApplication before using the user manager")
	ErrBadURL         = errors.New("bad url, check the application id")
	ErrNicknameEmpty  = errors.New("nickname must not be empty")
	ErrUserIDEmpty    = errors.New("user id must not be empty")
)

// --- Admissão e ritmo ---

var (
	// ErrRequestsExceeded indica fila de escrita cheia ou lote grande demais.
	// A rejeição é imediata e final (não há retry-after).
	ErrRequestsExceeded = errors.New("requests exceeding 10 are limited")

	// ErrRateLimited indica que o gate global ainda não liberou a próxima chamada.
	// O chamador pode tentar de novo depois do intervalo.
	ErrRateLimited = errors.New("rate limited, try again after the request interval")

	// ErrTasksCleared resolve tarefas pendentes descartadas pela troca de aplicação.
	ErrTasksCleared = errors.New("pending request discarded by application reset")
)

// --- Transporte ---

var (
	ErrEmptyResponseBody = errors.New("empty response body")
	ErrDecodeFailure     = errors.New("failed to decode response")
)

// ErrorInfo é o corpo estruturado das respostas de erro da plataforma.
type ErrorInfo struct {
	Error   bool   `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ServerError representa uma resposta não-2xx.
type ServerError struct {
	StatusCode int
	Info       *ErrorInfo
}

func (e *ServerError) Error() string {
	if e.Info == nil {
		return fmt.Sprintf("platform api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("platform api error: status %d code %d: %s", e.StatusCode, e.Info.Code, e.Info.Message)
}

// CreateUsersError é a falha parcial de um lote: os dois lados voltam juntos,
// sem rollback dos usuários já criados.
//
// Failed e Causes são paralelos (Causes[i] explica Failed[i]).
type CreateUsersError struct {
	Succeeded []User
	Failed    []CreationParams
	Causes    []error
}

func (e *CreateUsersError) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for _, p := range e.Failed {
		ids = append(ids, p.UserID)
	}
	return fmt.Sprintf("failed to create %d of %d users: [%s]",
		len(e.Failed), len(e.Failed)+len(e.Succeeded), strings.Join(ids, ", "))
}

func (e *CreateUsersError) Unwrap() []error { return e.Causes }

// IsRetryable diz se o erro é transitório do lado do cliente (gate ocupado).
//
// Um lote só é retentável se todas as falhas forem; basta uma falha
// definitiva (duplicado, 4xx) para o lote inteiro não ser.
func IsRetryable(err error) bool {
	var batch *CreateUsersError
	if errors.As(err, &batch) {
		if len(batch.Causes) == 0 {
			return false
		}
		for _, cause := range batch.Causes {
			if !IsRetryable(cause) {
				return false
			}
		}
		return true
	}
	return errors.Is(err, ErrRateLimited)
}
