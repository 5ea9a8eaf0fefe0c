package cache

import (
	"testing"
	"time"
)

func TestRistrettoSetGetDelete(t *testing.T) {
	c, err := NewRistretto[string](100, time.Minute)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	defer c.Close()

	c.Set("k", "v")
	c.Wait()
	if got, ok := c.Get("k"); !ok || got != "v" {
		t.Fatalf("Get = %q, %v", got, ok)
	}

	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Fatal("value still present after delete")
	}

	c.Set("a", "1")
	c.Set("b", "2")
	c.Wait()
	c.Clear()
	if _, ok := c.Get("a"); ok {
		t.Fatal("value still present after clear")
	}
}

func TestRistrettoExpires(t *testing.T) {
	c, err := NewRistretto[int](100, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	defer c.Close()

	c.Set("k", 1)
	c.Wait()
	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected fresh value")
	}
	time.Sleep(100 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected value to expire")
	}
}

var _ Cache[int] = (*Ristretto[int])(nil)
