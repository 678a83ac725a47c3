// Package backend define a capacidade de armazenamento remoto (chave/valor com TTL)
// consumida pelo núcleo e suas implementações concretas.
//
//   - Redis: produção, compartilhado entre processos (github.com/redis/go-redis/v9)
//   - Memory: processo único e testes, com relógio injetável
//   - WithTimeout: decorator que limita cada chamada e a desacopla do cancelamento do chamador
//
// Chaves usadas pelo sistema: entry:{id} e ratelimit:{hash(cliente)}:{classe}:{janela}.
package backend
