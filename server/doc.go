// Package server expõe o governor por HTTP (chi).
//
// Rotas:
//
//	POST   /v1/payloads        cria (201 {hash_id, expires_at})
//	GET    /v1/payloads/{id}   lê (200 ou 404)
//	DELETE /v1/payloads/{id}   apaga (204 ou 404)
//	GET    /health, /health/live, /health/ready
//	GET    /metrics
//
// Erros seguem o envelope {"error":{"code","message","details","request_id"}}.
package server
