// Package infra contém implementações concretas para os contratos do pacote domain.
//
//   - BurstBuckets: token bucket por cliente e classe (golang.org/x/time/rate)
//   - ChanPool: semáforo simples para limite de concorrência
//   - MemoryStatsStore / RedisStatsStore: contadores de decisões
package infra
