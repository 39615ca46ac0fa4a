package redis

import (
	"errors"
	"testing"

	goredis "github.com/redis/go-redis/v9"
)

func TestNewRequiresClient(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNilClient) {
		t.Fatalf("want ErrNilClient, got %v", err)
	}
}

func TestNewKeepsPrefix(t *testing.T) {
	c := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"})
	defer c.Close()
	p, err := New(Config{Client: c, Prefix: "svc:"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.prefix != "svc:" {
		t.Fatalf("prefix = %q", p.prefix)
	}
}
