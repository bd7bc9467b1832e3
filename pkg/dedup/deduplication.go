package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduplicator evita reprocessar o mesmo tender via checagens no Redis
type Deduplicator struct {
	rdb      *redis.Client
	ttlHours int
}

// NewDeduplicator cria uma nova instância compartilhada. Se ttlHours for 0, usa 48 horas.
func NewDeduplicator(rdb *redis.Client, ttlHours int) *Deduplicator {
	if ttlHours <= 0 {
		ttlHours = 48
	}
	return &Deduplicator{
		rdb:      rdb,
		ttlHours: ttlHours,
	}
}

// MarkAsSeen marca uma entidade (ex: URL de um tender) como vista sob um prefixo (ex: "found", "finished")
func (d *Deduplicator) MarkAsSeen(ctx context.Context, prefixType string, id string) error {
	key := fmt.Sprintf("pcc:%s:%s", prefixType, id)
	ttl := time.Duration(d.ttlHours) * time.Hour
	_, err := d.rdb.Set(ctx, key, "1", ttl).Result()
	return err
}

// CheckIfProcessed retorna true se a entidade existe sob o prefixo
func (d *Deduplicator) CheckIfProcessed(ctx context.Context, prefixType string, id string) (bool, error) {
	key := fmt.Sprintf("pcc:%s:%s", prefixType, id)
	exists, err := d.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

// Incr incrementa um contador de métrica (lido pelo endpoint /metrics)
func (d *Deduplicator) Incr(ctx context.Context, counter string) error {
	key := fmt.Sprintf("pcc:metrics:%s", counter)
	return d.rdb.Incr(ctx, key).Err()
}

// RDB retorna o client redis interno para usos externos (locks, métricas)
func (d *Deduplicator) RDB() *redis.Client {
	return d.rdb
}

// Close fecha a conexão redis
func (d *Deduplicator) Close() error {
	return d.rdb.Close()
}
