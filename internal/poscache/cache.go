package poscache

import (
	"context"
	"sync"
	"time"

	"perp_bot/internal/models"
	"perp_bot/pkg/logger"
)

// Venue — чтения, нужные кешу. Реализует биржевой клиент.
type Venue interface {
	OpenPositions(ctx context.Context) ([]models.PositionInfo, error)
	OpenOrders(ctx context.Context) ([]models.OpenOrder, error)
}

// Cache — TTL-зеркало открытых позиций и висящих лимиток входа.
// Единственные ворота для "можно ли действовать по символу".
// Резервации закрывают щель check-then-act: воркер помечает символ в момент
// решения об входе, до того как ордер отразится в рефреше.
type Cache struct {
	venue Venue
	ttl   time.Duration

	mu           sync.RWMutex
	positions    map[string]models.PositionInfo
	pendingEntry map[string]struct{}
	refreshedAt  time.Time

	resMu    sync.Mutex
	reserved map[string]struct{}

	metMu sync.Mutex
	met   Metrics

	now func() time.Time
}

// Metrics — счётчики кеша, снимаются через Snapshot.
type Metrics struct {
	Refreshes      int64
	RefreshErrors  int64
	ForcedRefresh  int64
	DeniedStale    int64
	DeniedBusy     int64
	DeniedReserved int64
}

func New(venue Venue, ttl time.Duration) *Cache {
	return &Cache{
		venue:        venue,
		ttl:          ttl,
		positions:    make(map[string]models.PositionInfo),
		pendingEntry: make(map[string]struct{}),
		reserved:     make(map[string]struct{}),
		now:          time.Now,
	}
}

// Refresh атомарно заменяет снапшот и штамп времени.
func (c *Cache) Refresh(ctx context.Context) error {
	positions, err := c.venue.OpenPositions(ctx)
	if err != nil {
		c.countErr()
		return err
	}
	orders, err := c.venue.OpenOrders(ctx)
	if err != nil {
		c.countErr()
		return err
	}

	nextPos := make(map[string]models.PositionInfo, len(positions))
	for _, p := range positions {
		nextPos[p.Symbol] = p
	}
	nextPending := make(map[string]struct{})
	for _, o := range orders {
		if o.Type == "LIMIT" && o.Status == "NEW" {
			nextPending[o.Symbol] = struct{}{}
		}
	}

	c.mu.Lock()
	c.positions = nextPos
	c.pendingEntry = nextPending
	c.refreshedAt = c.now()
	c.mu.Unlock()

	c.metMu.Lock()
	c.met.Refreshes++
	c.metMu.Unlock()
	return nil
}

func (c *Cache) countErr() {
	c.metMu.Lock()
	c.met.RefreshErrors++
	c.metMu.Unlock()
}

func (c *Cache) fresh() bool {
	return !c.refreshedAt.IsZero() && c.now().Sub(c.refreshedAt) < c.ttl
}

// ensureFresh форсирует синхронный рефреш на протухшем снапшоте.
func (c *Cache) ensureFresh(ctx context.Context) error {
	c.mu.RLock()
	ok := c.fresh()
	c.mu.RUnlock()
	if ok {
		return nil
	}

	c.metMu.Lock()
	c.met.ForcedRefresh++
	c.metMu.Unlock()
	return c.Refresh(ctx)
}

// IsSymbolFree: true только если нет позиции, нет висящего входа и нет
// резервации, по снапшоту не старше TTL. Ошибка биржи = "неизвестно" =
// консервативный отказ, не риск дубля.
func (c *Cache) IsSymbolFree(ctx context.Context, symbol string) (bool, string) {
	c.resMu.Lock()
	_, res := c.reserved[symbol]
	c.resMu.Unlock()
	if res {
		c.metMu.Lock()
		c.met.DeniedReserved++
		c.metMu.Unlock()
		return false, "reserved"
	}

	if err := c.ensureFresh(ctx); err != nil {
		logger.Error("[%s] cache refresh failed, denying entry: %v", symbol, err)
		c.metMu.Lock()
		c.met.DeniedStale++
		c.metMu.Unlock()
		return false, "cache unavailable"
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.positions[symbol]; ok {
		c.metMu.Lock()
		c.met.DeniedBusy++
		c.metMu.Unlock()
		return false, "open position"
	}
	if _, ok := c.pendingEntry[symbol]; ok {
		c.metMu.Lock()
		c.met.DeniedBusy++
		c.metMu.Unlock()
		return false, "pending entry order"
	}
	return true, ""
}

// ActiveCount — число символов с позицией или висящим входом.
func (c *Cache) ActiveCount(ctx context.Context) (int, error) {
	if err := c.ensureFresh(ctx); err != nil {
		return 0, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[string]struct{}, len(c.positions)+len(c.pendingEntry))
	for s := range c.positions {
		seen[s] = struct{}{}
	}
	for s := range c.pendingEntry {
		seen[s] = struct{}{}
	}
	return len(seen), nil
}

// HasOpenPosition — для детекта закрытия в лайфцикле.
func (c *Cache) HasOpenPosition(ctx context.Context, symbol string) (bool, error) {
	if err := c.ensureFresh(ctx); err != nil {
		return false, err
	}

	c.mu.RLock()
	_, ok := c.positions[symbol]
	c.mu.RUnlock()
	return ok, nil
}

func (c *Cache) Position(symbol string) (models.PositionInfo, bool) {
	c.mu.RLock()
	p, ok := c.positions[symbol]
	c.mu.RUnlock()
	return p, ok
}

// Reserve помечает символ "входим прямо сейчас". false — уже занят.
func (c *Cache) Reserve(symbol string) bool {
	c.resMu.Lock()
	defer c.resMu.Unlock()
	if _, ok := c.reserved[symbol]; ok {
		return false
	}
	c.reserved[symbol] = struct{}{}
	return true
}

func (c *Cache) Release(symbol string) {
	c.resMu.Lock()
	delete(c.reserved, symbol)
	c.resMu.Unlock()
}

// MarkOpened подкладывает свежую позицию в снапшот сразу после своего же
// входа, не дожидаясь планового рефреша.
func (c *Cache) MarkOpened(p models.PositionInfo) {
	c.mu.Lock()
	c.positions[p.Symbol] = p
	c.mu.Unlock()
}

func (c *Cache) MarkClosed(symbol string) {
	c.mu.Lock()
	delete(c.positions, symbol)
	c.mu.Unlock()
}

func (c *Cache) Snapshot() Metrics {
	c.metMu.Lock()
	defer c.metMu.Unlock()
	return c.met
}
