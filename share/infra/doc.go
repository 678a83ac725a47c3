// Package infra implementa as portas de share/domain: relógio do sistema,
// gerador de ids (uuid) e o armazenamento expirável sobre backend.Store.
package infra
