package kv

import (
	"context"
	"testing"
	"time"
)

func TestMemorySetNX(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	ok, err := m.SetNX(ctx, "k", []byte("v1"), time.Minute)
	if err != nil || !ok {
		t.Fatalf("first SetNX() = %v, %v", ok, err)
	}

	ok, err = m.SetNX(ctx, "k", []byte("v2"), time.Minute)
	if err != nil || ok {
		t.Fatalf("second SetNX() = %v, %v, want false", ok, err)
	}

	got, found, err := m.Get(ctx, "k")
	if err != nil || !found || string(got) != "v1" {
		t.Fatalf("Get() = %q, %v, %v", got, found, err)
	}
}

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Set(ctx, "k", []byte("v"), time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)

	_, found, err := m.Get(ctx, "k")
	if err != nil || found {
		t.Fatalf("Get() after expiry = found=%v, err=%v", found, err)
	}
}
