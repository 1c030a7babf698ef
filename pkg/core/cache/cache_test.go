package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type estimate struct {
	Processors int
}

// TestMemoryResultCache_SetAndGet 测试缓存设置和获取
func TestMemoryResultCache_SetAndGet(t *testing.T) {
	c := NewMemoryResultCache[estimate](time.Hour, time.Minute)
	defer c.Close()

	if err := c.Set("wf-bts-30", estimate{Processors: 2}, 0); err != nil {
		t.Fatalf("设置缓存失败: %v", err)
	}

	cached, found := c.Get("wf-bts-30")
	if !found {
		t.Fatal("期望缓存存在，但未找到")
	}
	if cached.Processors != 2 {
		t.Errorf("期望Processors为2，实际为%d", cached.Processors)
	}

	// 空key忽略
	if err := c.Set("", estimate{}, time.Hour); err != nil {
		t.Fatalf("空key不应返回错误: %v", err)
	}
	if _, found := c.Get(""); found {
		t.Error("空key不应命中")
	}
}

// TestMemoryResultCache_TTLExpiration 测试缓存TTL过期
func TestMemoryResultCache_TTLExpiration(t *testing.T) {
	c := NewMemoryResultCache[estimate](time.Hour, time.Hour)
	defer c.Close()

	if err := c.Set("short", estimate{Processors: 1}, 50*time.Millisecond); err != nil {
		t.Fatalf("设置缓存失败: %v", err)
	}
	if _, found := c.Get("short"); !found {
		t.Error("期望缓存存在，但未找到")
	}

	time.Sleep(100 * time.Millisecond)

	if _, found := c.Get("short"); found {
		t.Error("期望缓存已过期，但仍然存在")
	}
	if c.Len() != 0 {
		t.Errorf("过期条目应在读取时删除，实际剩余%d", c.Len())
	}
}

// TestMemoryResultCache_BackgroundCleanup 测试后台清理过期条目
func TestMemoryResultCache_BackgroundCleanup(t *testing.T) {
	c := NewMemoryResultCache[estimate](time.Hour, 20*time.Millisecond)
	defer c.Close()

	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("k%d", i), estimate{Processors: i}, 10*time.Millisecond)
	}

	deadline := time.Now().Add(2 * time.Second)
	for c.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if c.Len() != 0 {
		t.Errorf("期望后台清理所有过期条目，实际剩余%d", c.Len())
	}
}

// TestMemoryResultCache_ConcurrentAccess 测试缓存并发安全
func TestMemoryResultCache_ConcurrentAccess(t *testing.T) {
	c := NewMemoryResultCache[estimate](time.Hour, time.Minute)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", idx)
			if err := c.Set(key, estimate{Processors: idx}, time.Hour); err != nil {
				t.Errorf("设置缓存失败: %v", err)
			}
			cached, found := c.Get(key)
			if !found || cached.Processors != idx {
				t.Errorf("期望缓存值为%d，实际为%v (found=%v)", idx, cached.Processors, found)
			}
		}(i)
	}
	wg.Wait()
}

// TestMemoryResultCache_DeleteAndClear 测试删除与清空
func TestMemoryResultCache_DeleteAndClear(t *testing.T) {
	c := NewMemoryResultCache[estimate](time.Hour, time.Minute)
	defer c.Close()

	for i := 0; i < 10; i++ {
		c.Set(fmt.Sprintf("key-%d", i), estimate{Processors: i}, time.Hour)
	}

	if err := c.Delete("key-0"); err != nil {
		t.Fatalf("删除缓存失败: %v", err)
	}
	if _, found := c.Get("key-0"); found {
		t.Error("期望缓存已删除，但仍然存在")
	}

	if err := c.Clear(); err != nil {
		t.Fatalf("清空缓存失败: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("期望缓存已清空，实际剩余%d", c.Len())
	}
}

// TestMemoryResultCache_CloseIdempotent Close可重复调用
func TestMemoryResultCache_CloseIdempotent(t *testing.T) {
	c := NewMemoryResultCache[estimate](time.Hour, time.Minute)
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
}
