// Package domain define os tipos e contratos do gerenciador de usuários.
//
// Este pacote não depende de net/http nem de implementações concretas
// (fila, limitador, cache, transporte, armazenamento do app id).
// A intenção é permitir testes de unidade puros da camada application
// e desacoplar as regras de negócio dos detalhes de infraestrutura.
package domain
