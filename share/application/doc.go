// Package application contém o governor: cada operação (criar, ler, apagar)
// passa primeiro pelo rate limit da sua classe e só então chega ao
// armazenamento expirável.
package application
