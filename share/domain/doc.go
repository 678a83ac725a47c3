// Package domain define a entrada compartilhada, a taxonomia de erros e as
// portas (Clock, IDGenerator, EntryStore) do serviço.
package domain
