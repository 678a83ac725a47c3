// Package config carrega a configuração do jump com viper.
//
// Toda chave tem default em SetDefaults e pode ser sobrescrita por arquivo
// YAML, por variável de ambiente (JUMP_REDIS_ADDR => redis.addr) ou por flag.
package config
