package domain

import "context"

// Métodos usados pelas operações do cliente.
const (
	MethodGet  = "GET"
	MethodPost = "POST"
	MethodPut  = "PUT"
)

// HeaderAPIToken carrega o token de API em toda requisição.
const HeaderAPIToken = "Api-Token"

// Call descreve uma chamada HTTP sem depender de net/http.
//
// Em GET os Params viram query string; nos demais métodos viram corpo JSON.
type Call struct {
	Method string
	URL    string
	Header map[string]string
	Params map[string]any
}

// Transport executa uma Call e decodifica o corpo 2xx em out.
//
// Erros esperados: *ServerError (não-2xx), ErrEmptyResponseBody, ErrDecodeFailure
// ou erro de rede.
type Transport interface {
	Do(ctx context.Context, call Call, out any) error
}

// Request amarra uma Call ao tipo de resposta esperado.
type Request[R any] struct {
	Call
}

func NewRequest[R any](method, url, apiToken string, params map[string]any) Request[R] {
	return Request[R]{Call: Call{
		Method: method,
		URL:    url,
		Header: map[string]string{HeaderAPIToken: apiToken},
		Params: params,
	}}
}

type validator interface {
	Validate() error
}

// Send executa req e devolve a resposta já tipada.
//
// Se R souber se validar (Validate() error), a resposta só é aceita quando válida.
func Send[R any](ctx context.Context, t Transport, req Request[R]) (R, error) {
	var out R
	if err := t.Do(ctx, req.Call, &out); err != nil {
		var zero R
		return zero, err
	}
	if v, ok := any(&out).(validator); ok {
		if err := v.Validate(); err != nil {
			var zero R
			return zero, err
		}
	}
	return out, nil
}
