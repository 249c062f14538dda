package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"SchoolSuite/internal/config"
	"SchoolSuite/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Change is the raw row-change payload published by table triggers via
// pg_notify on the shared change channel.
type Change struct {
	Table  string                 `json:"table"`
	Event  string                 `json:"event"` // INSERT | UPDATE | DELETE
	Record map[string]interface{} `json:"record"`
}

// Filter restricts a subscription to rows where Record[Column] equals Value.
type Filter struct {
	Column string
	Value  string
}

type Subscription struct {
	key      string
	Table    string
	Event    string // INSERT, UPDATE, DELETE or "*"
	Filter   *Filter
	callback func(Change)
}

// Notifier owns the LISTEN connection and the subscription registry. It is
// constructed at startup and torn down at shutdown; there is no package-level
// registry.
type Notifier struct {
	pool   *pgxpool.Pool
	mu     sync.RWMutex
	subs   map[string]*Subscription
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewNotifier(pool *pgxpool.Pool) *Notifier {
	return &Notifier{
		pool: pool,
		subs: make(map[string]*Subscription),
	}
}

func subscriptionKey(table, event string, filter *Filter) string {
	if filter != nil {
		return fmt.Sprintf("%s|%s|%s=%s", table, event, filter.Column, filter.Value)
	}
	return fmt.Sprintf("%s|%s|", table, event)
}

// Subscribe registers callback for changes on table. Subscriptions are
// deduplicated by table+event+filter: subscribing again with identical
// parameters returns the existing subscription unchanged.
func (n *Notifier) Subscribe(table, event string, filter *Filter, callback func(Change)) *Subscription {
	key := subscriptionKey(table, event, filter)
	n.mu.Lock()
	defer n.mu.Unlock()
	if existing, ok := n.subs[key]; ok {
		return existing
	}
	sub := &Subscription{key: key, Table: table, Event: event, Filter: filter, callback: callback}
	n.subs[key] = sub
	return sub
}

// Unsubscribe removes the subscription from the registry.
func (n *Notifier) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs[sub.key] == sub {
		delete(n.subs, sub.key)
	}
}

// Subscriptions returns the active subscription keys.
func (n *Notifier) Subscriptions() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	keys := make([]string, 0, len(n.subs))
	for k := range n.subs {
		keys = append(keys, k)
	}
	return keys
}

// Start begins listening on the change channel.
func (n *Notifier) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	n.wg.Add(1)
	go n.listenLoop(ctx)
}

func (n *Notifier) Stop() {
	if n.cancel != nil {
		n.cancel()
	}
	n.wg.Wait()
}

func (n *Notifier) listenLoop(ctx context.Context) {
	defer n.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		if err := n.listen(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[Realtime] listen error: %v, reconnecting", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(config.RetryDelay):
			}
		}
	}
}

func (n *Notifier) listen(ctx context.Context) error {
	conn, err := n.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	if _, err := conn.Exec(ctx, "LISTEN "+config.ChangeChannel); err != nil {
		return err
	}
	logger.Audit("Realtime notifier listening on %s", config.ChangeChannel)
	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		var change Change
		if err := json.Unmarshal([]byte(notification.Payload), &change); err != nil {
			log.Printf("[Realtime] bad change payload: %v", err)
			continue
		}
		n.dispatch(change)
	}
}

func (n *Notifier) dispatch(change Change) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, sub := range n.subs {
		if sub.Table != change.Table {
			continue
		}
		if sub.Event != "*" && sub.Event != change.Event {
			continue
		}
		if sub.Filter != nil && !matchesFilter(change.Record, sub.Filter) {
			continue
		}
		sub.callback(change)
	}
}

func matchesFilter(record map[string]interface{}, f *Filter) bool {
	v, ok := record[f.Column]
	if !ok {
		return false
	}
	return fmt.Sprintf("%v", v) == f.Value
}
