// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - Queue / Scheduler: fila FIFO thread-safe e execução espaçada de tarefas
//   - Gate: limitador global baseado em golang.org/x/time/rate
//   - UserCache: coleção de usuários sobre um CostStore com teto de custo
//   - HTTPTransport + ResponseCache: net/http com revalidação por ETag (golang-lru)
//   - AppStore: memória, arquivo (viper), Redis e LevelDB
//   - StatsStore: memória e Redis
package infra
