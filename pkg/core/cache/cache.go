package cache

import (
	"sync"
	"time"
)

// ResultCache 估算结果缓存接口（对外导出）
// key 通常是工作流指纹与估算参数组合后的摘要
type ResultCache[V any] interface {
	// Set 设置缓存值，ttl<=0 时使用默认有效期
	Set(key string, value V, ttl time.Duration) error

	// Get 获取缓存值
	// 返回: 结果数据和是否存在
	Get(key string) (V, bool)

	// Delete 删除缓存值
	Delete(key string) error

	// Clear 清空所有缓存
	Clear() error

	// Close 停止后台清理
	Close() error
}

// cacheEntry 缓存条目（内部使用）
type cacheEntry[V any] struct {
	value      V
	expireTime time.Time
}

// MemoryResultCache 内存结果缓存实现（对外导出）
type MemoryResultCache[V any] struct {
	mu         sync.RWMutex
	cache      map[string]*cacheEntry[V]
	defaultTTL time.Duration

	stopOnce sync.Once
	stop     chan struct{}
}

// NewMemoryResultCache 创建内存结果缓存实例（对外导出）
// cleanInterval 为后台清理过期条目的周期
func NewMemoryResultCache[V any](defaultTTL, cleanInterval time.Duration) *MemoryResultCache[V] {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	if cleanInterval <= 0 {
		cleanInterval = time.Minute
	}
	c := &MemoryResultCache[V]{
		cache:      make(map[string]*cacheEntry[V]),
		defaultTTL: defaultTTL,
		stop:       make(chan struct{}),
	}
	// 启动清理协程，定期清理过期缓存
	go c.cleanupExpired(cleanInterval)
	return c
}

// Set 设置缓存值
func (c *MemoryResultCache[V]) Set(key string, value V, ttl time.Duration) error {
	if key == "" {
		return nil // 空key，忽略
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache[key] = &cacheEntry[V]{
		value:      value,
		expireTime: time.Now().Add(ttl),
	}
	return nil
}

// Get 获取缓存值，过期条目视为不存在并被删除
func (c *MemoryResultCache[V]) Get(key string) (V, bool) {
	var zero V
	if key == "" {
		return zero, false
	}

	c.mu.RLock()
	entry, exists := c.cache[key]
	c.mu.RUnlock()
	if !exists {
		return zero, false
	}

	if time.Now().After(entry.expireTime) {
		c.mu.Lock()
		if current, ok := c.cache[key]; ok && current == entry {
			delete(c.cache, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return entry.value, true
}

// Delete 删除缓存值
func (c *MemoryResultCache[V]) Delete(key string) error {
	if key == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.cache, key)
	return nil
}

// Clear 清空所有缓存
func (c *MemoryResultCache[V]) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = make(map[string]*cacheEntry[V])
	return nil
}

// Len 当前条目数（包含尚未清理的过期条目）
func (c *MemoryResultCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Close 停止清理协程，可重复调用
func (c *MemoryResultCache[V]) Close() error {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
	return nil
}

// cleanupExpired 清理过期缓存（内部方法）
func (c *MemoryResultCache[V]) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.purge()
		}
	}
}

func (c *MemoryResultCache[V]) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.cache {
		if now.After(entry.expireTime) {
			delete(c.cache, key)
		}
	}
}
