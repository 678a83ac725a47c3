// Package application contém os casos de uso do rate limit e do limite de
// concorrência.
//
// Depende apenas do pacote domain e não conhece net/http.
// Limiter.Admit aplica a janela fixa por (cliente, classe); Shield filtra
// rajadas localmente; ConcurrencyService controla vagas com timeout.
package application
