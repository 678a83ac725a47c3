// Package ratelimit fornece adapters HTTP (net/http) para rate limit e limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: janela fixa (Limiter.Admit), escudo local e acquire/timeout, sem net/http
//   - infra: implementações concretas (token bucket, semáforo, estatísticas)
//   - ratelimit (este pacote): middlewares HTTP, extração do cliente e headers
//
// Fluxo no servidor:
//
//  1. Identify resolve o cliente (header de API key, XFF ou RemoteAddr)
//  2. ConcurrencyMiddleware limita requisições em voo (503)
//  3. Shield corta rajadas localmente (429)
//  4. O handler chama o governor, que consulta o Limiter por classe de operação;
//     WriteDecisionHeaders traduz a decisão em X-RateLimit-*
package ratelimit
