package promo

import (
	"context"
	"sync"

	"github.com/demobank/transaction-notifier/internal/domain"
)

type Memory struct {
	promotions map[string]domain.Promotion
	mu         sync.RWMutex
}

func NewMemory() *Memory {
	return &Memory{
		promotions: make(map[string]domain.Promotion),
	}
}

func (m *Memory) Create(ctx context.Context, promo domain.Promotion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.promotions[promo.Username] = promo
	return nil
}

func (m *Memory) Get(ctx context.Context, username string) (*domain.Promotion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	promo, exists := m.promotions[username]
	if !exists {
		return nil, domain.ErrPromotionNotFound
	}

	return &promo, nil
}

func (m *Memory) All(ctx context.Context) ([]domain.Promotion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	promos := make([]domain.Promotion, 0, len(m.promotions))
	for _, promo := range m.promotions {
		promos = append(promos, promo)
	}

	return promos, nil
}

func (m *Memory) Delete(ctx context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.promotions[username]; !exists {
		return domain.ErrPromotionNotFound
	}

	delete(m.promotions, username)
	return nil
}
