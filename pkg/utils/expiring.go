package utils

import (
	"sync"
	"time"
)

// ExpiringSet é um conjunto que remove itens automaticamente após um período
// de tempo. Útil para deduplicação de mensagens já exibidas.
type ExpiringSet struct {
	items    map[string]time.Time
	mutex    sync.RWMutex
	ttl      time.Duration
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewExpiringSet cria um novo conjunto com expiração
// ttl: tempo de vida dos itens
// cleanupInterval: intervalo para verificar e remover itens expirados
func NewExpiringSet(ttl time.Duration, cleanupInterval time.Duration) *ExpiringSet {
	es := &ExpiringSet{
		items:    make(map[string]time.Time),
		ttl:      ttl,
		stopChan: make(chan struct{}),
	}

	es.wg.Add(1)
	go func() {
		defer es.wg.Done()
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				es.cleanup()
			case <-es.stopChan:
				return
			}
		}
	}()

	return es
}

// Add adiciona um item ao conjunto.
// Retorna true se o item foi adicionado, false se já existia e não expirou.
func (es *ExpiringSet) Add(item string) bool {
	es.mutex.Lock()
	defer es.mutex.Unlock()

	now := time.Now()
	if expiry, exists := es.items[item]; exists && expiry.After(now) {
		return false
	}

	es.items[item] = now.Add(es.ttl)
	return true
}

// Contains verifica se um item está no conjunto e ainda não expirou
func (es *ExpiringSet) Contains(item string) bool {
	es.mutex.RLock()
	defer es.mutex.RUnlock()

	expiry, exists := es.items[item]
	return exists && expiry.After(time.Now())
}

// Remove remove um item do conjunto
func (es *ExpiringSet) Remove(item string) {
	es.mutex.Lock()
	defer es.mutex.Unlock()

	delete(es.items, item)
}

// Size retorna o número de itens não expirados no conjunto
func (es *ExpiringSet) Size() int {
	es.mutex.RLock()
	defer es.mutex.RUnlock()

	now := time.Now()
	count := 0
	for _, expiry := range es.items {
		if expiry.After(now) {
			count++
		}
	}
	return count
}

// Stop encerra a goroutine de limpeza
func (es *ExpiringSet) Stop() {
	close(es.stopChan)
	es.wg.Wait()
}

// cleanup remove os itens expirados
func (es *ExpiringSet) cleanup() {
	es.mutex.Lock()
	defer es.mutex.Unlock()

	now := time.Now()
	for item, expiry := range es.items {
		if !expiry.After(now) {
			delete(es.items, item)
		}
	}
}
