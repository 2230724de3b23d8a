package domain

import "github.com/pkg/errors"

// User é o registro de usuário da plataforma.
//
// Só é alterado trocando o registro inteiro (não há patch de campos abaixo do cache).
type User struct {
	UserID     string `json:"user_id"`
	Nickname   string `json:"nickname"`
	ProfileURL string `json:"profile_url"`
}

// Validate rejeita respostas sem user_id: um usuário sem chave não pode ir para o cache.
func (u User) Validate() error {
	if u.UserID == "" {
		return errors.Wrap(ErrDecodeFailure, "user_id missing from response")
	}
	return nil
}

// UserList é o envelope das respostas de listagem.
type UserList struct {
	Users []User `json:"users"`
	Next  string `json:"next,omitempty"`
}

func (l UserList) Validate() error {
	for i, u := range l.Users {
		if err := u.Validate(); err != nil {
			return errors.Wrapf(err, "users[%d]", i)
		}
	}
	return nil
}

// CreationParams são os parâmetros de criação. UserID e Nickname são obrigatórios.
type CreationParams struct {
	UserID     string
	Nickname   string
	ProfileURL string
}

func (p CreationParams) Validate() error {
	if p.UserID == "" {
		return ErrUserIDEmpty
	}
	if p.Nickname == "" {
		return ErrNicknameEmpty
	}
	return nil
}

// Params monta o corpo da requisição. profile_url só vai quando informado.
func (p CreationParams) Params() map[string]any {
	params := map[string]any{
		"user_id":  p.UserID,
		"nickname": p.Nickname,
	}
	if p.ProfileURL != "" {
		params["profile_url"] = p.ProfileURL
	}
	return params
}

// UpdateParams são os parâmetros de atualização.
//
// Campos nil não são enviados, então um update parcial nunca apaga o valor no
// servidor. Para limpar um campo explicitamente, use um ponteiro para "".
type UpdateParams struct {
	UserID     string
	Nickname   *string
	ProfileURL *string
}

func (p UpdateParams) Validate() error {
	if p.UserID == "" {
		return ErrUserIDEmpty
	}
	return nil
}

func (p UpdateParams) Params() map[string]any {
	params := map[string]any{}
	if p.Nickname != nil {
		params["nickname"] = *p.Nickname
	}
	if p.ProfileURL != nil {
		params["profile_url"] = *p.ProfileURL
	}
	return params
}

// String devolve um ponteiro para s. Útil para montar UpdateParams.
func String(s string) *string { return &s }
