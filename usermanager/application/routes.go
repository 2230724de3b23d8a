package application

import (
	"net/url"
	"strings"

	"user-manager/usermanager/domain"

	"github.com/pkg/errors"
)

// AppIDPlaceholder é substituído pelo app id na URL base.
const AppIDPlaceholder = "{app_id}"

// DefaultBaseURL aponta para a API da plataforma.
const DefaultBaseURL = "https://api-" + AppIDPlaceholder + ".sendbird.com/v3"

// Routes monta as URLs das operações a partir da URL base.
type Routes struct {
	BaseURL string
}

func (r Routes) Users(appID string) (string, error) {
	return r.build(appID, "/users")
}

func (r Routes) User(appID, userID string) (string, error) {
	return r.build(appID, "/users/"+url.PathEscape(userID))
}

func (r Routes) build(appID, path string) (string, error) {
	base := r.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	raw := strings.TrimRight(strings.ReplaceAll(base, AppIDPlaceholder, appID), "/") + path

	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.Wrapf(domain.ErrBadURL, "%q: %v", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.Wrapf(domain.ErrBadURL, "%q", raw)
	}
	return u.String(), nil
}
