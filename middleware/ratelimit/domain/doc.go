// Package domain define contratos e tipos de domínio para rate limit e concorrência.
//
// Este pacote não depende de net/http nem de implementações concretas.
// Classes de operação, decisão de admissão, contador compartilhado e política
// de falha ficam aqui; o algoritmo de janela fixa fica em application.
package domain
