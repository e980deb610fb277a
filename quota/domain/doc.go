// Package domain define contratos e tipos de domínio para controle de cota de uso.
//
// Este pacote não depende de Redis, SQL nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar regras de negócio
// de detalhes de infraestrutura.
package domain
