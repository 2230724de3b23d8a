// Package application contém os casos de uso do gerenciador de usuários:
// inicialização por aplicação, criação (individual e em lote), atualização e
// consultas, decidindo entre fila de escrita, gate de ritmo e cache local.
//
// Não sabe nada sobre HTTP: fala com o servidor só através de domain.Transport.
package application
