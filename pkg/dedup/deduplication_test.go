package dedup

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMarkAndCheck(t *testing.T) {
	// Setup MiniRedis pra rodar os testes sem precisar do Redis real subindo
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Erro ao iniciar miniredis: %v", err)
	}
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	d := NewDeduplicator(rdb, 24)
	ctx := context.Background()

	url := "https://web.pcc.gov.tw/tps/QueryTender/query/searchTenderDetail?pkPmsMain=ABC123"

	// Antes de marcar, não pode constar como processado
	processed, err := d.CheckIfProcessed(ctx, "finished", url)
	if err != nil {
		t.Fatalf("Erro no check inicial: %v", err)
	}
	if processed {
		t.Errorf("URL nunca vista retornou como processada")
	}

	if err := d.MarkAsSeen(ctx, "finished", url); err != nil {
		t.Fatalf("Erro marcando como vista: %v", err)
	}

	processed, err = d.CheckIfProcessed(ctx, "finished", url)
	if err != nil {
		t.Fatalf("Erro no check pós-mark: %v", err)
	}
	if !processed {
		t.Errorf("URL marcada não retornou como processada")
	}

	// Prefixos diferentes não podem colidir
	other, _ := d.CheckIfProcessed(ctx, "found", url)
	if other {
		t.Errorf("Prefixo 'found' colidiu com 'finished' para a mesma URL")
	}
}

func TestIncr(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Erro ao iniciar miniredis: %v", err)
	}
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	d := NewDeduplicator(rdb, 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := d.Incr(ctx, "captcha_solved"); err != nil {
			t.Fatalf("Erro no Incr: %v", err)
		}
	}

	val, err := rdb.Get(ctx, "pcc:metrics:captcha_solved").Result()
	if err != nil {
		t.Fatalf("Erro lendo contador: %v", err)
	}
	if val != "3" {
		t.Errorf("Contador = %s, esperava 3", val)
	}
}
