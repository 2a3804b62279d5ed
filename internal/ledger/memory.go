// Package ledger implements domain.TicketLedger, the record of which seats
// are sold for each performance.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/metinatakli/theatre-reservation-system/internal/domain"
)

const defaultIdleTTL = 10 * time.Minute

// SeedFunc loads the committed claims of a performance. Memory calls it the
// first time a performance is touched, and again after an idle shard has
// been evicted.
type SeedFunc func(ctx context.Context, performanceID int) ([]domain.SeatClaim, error)

// Memory keeps occupancy in process. Each performance has its own shard and
// lock, so claims on different performances never contend. Shards nobody
// has used for idleTTL are dropped and re-seeded on next use.
type Memory struct {
	mu        sync.Mutex
	shards    map[int]*shard
	seed      SeedFunc
	now       func() time.Time
	idleTTL   time.Duration
	lastSweep time.Time
}

type shard struct {
	mu     sync.Mutex
	loaded bool
	claims map[domain.Seat]domain.SeatClaim

	// guarded by Memory.mu
	refs     int
	lastUsed time.Time
}

type MemoryOption func(*Memory)

// WithIdleTTL sets how long an unused shard is kept. Zero keeps shards
// forever.
func WithIdleTTL(ttl time.Duration) MemoryOption {
	return func(l *Memory) {
		l.idleTTL = ttl
	}
}

func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(l *Memory) {
		l.now = now
	}
}

func NewMemory(seed SeedFunc, opts ...MemoryOption) *Memory {
	l := &Memory{
		shards:  make(map[int]*shard),
		seed:    seed,
		now:     time.Now,
		idleTTL: defaultIdleTTL,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

func (l *Memory) OccupiedSeats(ctx context.Context, performanceID int) ([]domain.Seat, error) {
	sh, err := l.lockShard(ctx, performanceID)
	if err != nil {
		return nil, err
	}
	defer l.unlockShard(sh)

	seats := make([]domain.Seat, 0, len(sh.claims))
	for seat := range sh.claims {
		seats = append(seats, seat)
	}
	domain.SortSeats(seats)

	return seats, nil
}

// TryClaim holds every seat for owner or none of them. Seats owner already
// holds do not conflict, so a claim whose outcome was lost can be repeated.
func (l *Memory) TryClaim(ctx context.Context, performanceID int, owner string, seats []domain.Seat) error {
	sh, err := l.lockShard(ctx, performanceID)
	if err != nil {
		return err
	}
	defer l.unlockShard(sh)

	var taken []domain.Seat
	for _, seat := range seats {
		if claim, ok := sh.claims[seat]; ok && claim.Owner != owner {
			taken = append(taken, seat)
		}
	}

	if len(taken) > 0 {
		return &domain.SeatAlreadyTakenError{Seats: taken}
	}

	claimedAt := l.now()
	for _, seat := range seats {
		sh.claims[seat] = domain.SeatClaim{Seat: seat, Owner: owner, ClaimedAt: claimedAt}
	}

	return nil
}

func (l *Memory) Release(ctx context.Context, performanceID int, owner string, seats []domain.Seat) error {
	sh, err := l.lockShard(ctx, performanceID)
	if err != nil {
		return err
	}
	defer l.unlockShard(sh)

	for _, seat := range seats {
		if claim, ok := sh.claims[seat]; ok && claim.Owner == owner {
			delete(sh.claims, seat)
		}
	}

	return nil
}

// Claims returns the current claims on seats, in request order. Free seats
// are skipped.
func (l *Memory) Claims(ctx context.Context, performanceID int, seats []domain.Seat) ([]domain.SeatClaim, error) {
	sh, err := l.lockShard(ctx, performanceID)
	if err != nil {
		return nil, err
	}
	defer l.unlockShard(sh)

	claims := make([]domain.SeatClaim, 0, len(seats))
	for _, seat := range seats {
		if claim, ok := sh.claims[seat]; ok {
			claims = append(claims, claim)
		}
	}

	return claims, nil
}

func (l *Memory) Restore(ctx context.Context, performanceID int, claims []domain.SeatClaim) error {
	sh, err := l.lockShard(ctx, performanceID)
	if err != nil {
		return err
	}
	defer l.unlockShard(sh)

	for _, claim := range claims {
		if _, ok := sh.claims[claim.Seat]; !ok {
			sh.claims[claim.Seat] = claim
		}
	}

	return nil
}

// lockShard returns the performance's shard locked and seeded.
func (l *Memory) lockShard(ctx context.Context, performanceID int) (*shard, error) {
	l.mu.Lock()
	l.evictIdleLocked()

	sh, ok := l.shards[performanceID]
	if !ok {
		sh = &shard{claims: make(map[domain.Seat]domain.SeatClaim)}
		l.shards[performanceID] = sh
	}
	sh.refs++
	l.mu.Unlock()

	sh.mu.Lock()

	if sh.loaded || l.seed == nil {
		sh.loaded = true
		return sh, nil
	}

	claims, err := l.seed(ctx, performanceID)
	if err != nil {
		l.unlockShard(sh)
		return nil, fmt.Errorf("seed ledger for performance %d: %w", performanceID, err)
	}

	for _, claim := range claims {
		sh.claims[claim.Seat] = claim
	}
	sh.loaded = true

	return sh, nil
}

func (l *Memory) unlockShard(sh *shard) {
	sh.mu.Unlock()

	l.mu.Lock()
	sh.refs--
	sh.lastUsed = l.now()
	l.mu.Unlock()
}

// evictIdleLocked drops shards nobody holds that have been unused for
// idleTTL. It sweeps at most once per idleTTL. l.mu must be held.
func (l *Memory) evictIdleLocked() {
	if l.idleTTL <= 0 {
		return
	}

	now := l.now()
	if now.Sub(l.lastSweep) < l.idleTTL {
		return
	}
	l.lastSweep = now

	for id, sh := range l.shards {
		if sh.refs == 0 && now.Sub(sh.lastUsed) >= l.idleTTL {
			delete(l.shards, id)
		}
	}
}
