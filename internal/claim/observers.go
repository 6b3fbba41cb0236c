package claim

import (
	"sync"
	"time"

	"github.com/couchcryptid/capyquest-claim/internal/domain"
)

// Transition is one step of an attempt as seen by progress subscribers.
type Transition struct {
	AttemptID string              `json:"attempt_id"`
	Kind      Kind                `json:"kind"`
	TokenID   string              `json:"token_id,omitempty"`
	From      State               `json:"from"`
	To        State               `json:"to"`
	Effect    Effect              `json:"effect"`
	Distance  *float64            `json:"distance_meters,omitempty"`
	TxHash    string              `json:"tx_hash,omitempty"`
	Result    *domain.ClaimResult `json:"result,omitempty"`
	At        time.Time           `json:"at"`
}

func newTransition(from, to Attempt, eff Effect) Transition {
	return Transition{
		AttemptID: to.ID,
		Kind:      to.Kind,
		TokenID:   to.Target.TokenID,
		From:      from.State,
		To:        to.State,
		Effect:    eff,
		Distance:  to.Distance,
		TxHash:    to.TxHash,
		Result:    to.Result,
		At:        time.Now().UTC(),
	}
}

const subscriberBuffer = 16

type observers struct {
	mu   sync.RWMutex
	next int
	subs map[string]map[int]chan Transition
}

func newObservers() *observers {
	return &observers{subs: make(map[string]map[int]chan Transition)}
}

func (o *observers) subscribe(key string) (<-chan Transition, func()) {
	ch := make(chan Transition, subscriberBuffer)

	o.mu.Lock()
	id := o.next
	o.next++
	if o.subs[key] == nil {
		o.subs[key] = make(map[int]chan Transition)
	}
	o.subs[key][id] = ch
	o.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subs[key], id)
			if len(o.subs[key]) == 0 {
				delete(o.subs, key)
			}
			o.mu.Unlock()
			close(ch)
		})
	}
}

func (o *observers) publish(key string, t Transition) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, ch := range o.subs[key] {
		select {
		case ch <- t:
		default:
		}
	}
}
