// Package sandbox fornece um servidor HTTP que emula a API de usuários da
// plataforma em memória, para desenvolvimento e testes de ponta a ponta.
//
// Visão geral (camadas do handler, de fora para dentro):
//
//   - requestID: gera X-Request-Id (uuid) e loga a requisição
//   - Throttle: token bucket por chave (Api-Token, XFF ou IP), 429 + Retry-After
//   - Concurrency: semáforo com timeout de aquisição, 503
//   - API: POST/GET/PUT /v3/users... com erros no formato {error, code, message}
//
// O binário cmd/sandbox lê a seção sandbox da configuração (USERMANAGER_SANDBOX_*).
package sandbox
