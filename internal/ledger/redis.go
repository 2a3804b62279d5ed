package ledger

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/metinatakli/theatre-reservation-system/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Redis Lua script that claims every seat of a batch for one owner or none
// of them. Returns the fields held by someone else; an empty reply means
// success.
var claimSeatsScript = redis.NewScript(`
	-- KEYS[1] = occupancy hash of the performance (e.g. ledger:performance:42)
	-- ARGV[1] = owner, ARGV[2] = holder value ("<owner>|<unix millis>")
	-- ARGV[3..] = seat fields (e.g. "3:14")

	local prefix = ARGV[1] .. "|"
	local taken = {}

	for i = 3, #ARGV do
		local holder = redis.call("HGET", KEYS[1], ARGV[i])
		if holder and string.sub(holder, 1, #prefix) ~= prefix then
			table.insert(taken, ARGV[i])
		end
	end

	if #taken > 0 then
		return taken
	end

	for i = 3, #ARGV do
		redis.call("HSET", KEYS[1], ARGV[i], ARGV[2])
	end

	return taken
`)

// Redis Lua script that frees the seats of a batch held by one owner.
// Returns the number of seats freed.
var releaseSeatsScript = redis.NewScript(`
	-- KEYS[1] = occupancy hash of the performance
	-- ARGV[1] = owner, ARGV[2..] = seat fields

	local prefix = ARGV[1] .. "|"
	local released = 0

	for i = 2, #ARGV do
		local holder = redis.call("HGET", KEYS[1], ARGV[i])
		if holder and string.sub(holder, 1, #prefix) == prefix then
			redis.call("HDEL", KEYS[1], ARGV[i])
			released = released + 1
		end
	end

	return released
`)

// Redis Lua script that writes claims for seats nobody holds.
var restoreSeatsScript = redis.NewScript(`
	-- KEYS[1] = occupancy hash of the performance
	-- ARGV = field, holder value pairs

	for i = 1, #ARGV, 2 do
		redis.call("HSETNX", KEYS[1], ARGV[i], ARGV[i + 1])
	end

	return 0
`)

// Redis keeps occupancy in one Redis hash per performance, shared by every
// process connected to the same server. Each field is a seat and its value
// names the reservation holding it and when it was claimed.
type Redis struct {
	client redis.UniversalClient
	now    func() time.Time
}

type RedisOption func(*Redis)

func WithRedisClock(now func() time.Time) RedisOption {
	return func(l *Redis) {
		l.now = now
	}
}

func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	l := &Redis{
		client: client,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

func (l *Redis) OccupiedSeats(ctx context.Context, performanceID int) ([]domain.Seat, error) {
	fields, err := l.client.HKeys(ctx, occupancyKey(performanceID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read occupancy hash: %w", err)
	}

	seats, err := parseSeatMembers(fields)
	if err != nil {
		return nil, err
	}
	domain.SortSeats(seats)

	return seats, nil
}

func (l *Redis) TryClaim(ctx context.Context, performanceID int, owner string, seats []domain.Seat) error {
	if len(seats) == 0 {
		return nil
	}

	args := append([]any{owner, holderValue(owner, l.now())}, seatMembers(seats)...)

	taken, err := claimSeatsScript.Run(
		ctx,
		l.client,
		[]string{occupancyKey(performanceID)},
		args...,
	).StringSlice()
	if err != nil {
		return fmt.Errorf("failed to run claimSeatsScript: %w", err)
	}

	if len(taken) == 0 {
		return nil
	}

	takenSeats, err := parseSeatMembers(taken)
	if err != nil {
		return err
	}

	return &domain.SeatAlreadyTakenError{Seats: takenSeats}
}

func (l *Redis) Release(ctx context.Context, performanceID int, owner string, seats []domain.Seat) error {
	if len(seats) == 0 {
		return nil
	}

	args := append([]any{owner}, seatMembers(seats)...)

	err := releaseSeatsScript.Run(ctx, l.client, []string{occupancyKey(performanceID)}, args...).Err()
	if err != nil {
		return fmt.Errorf("failed to run releaseSeatsScript: %w", err)
	}

	return nil
}

// Claims returns the current claims on seats, in request order. Free seats
// are skipped.
func (l *Redis) Claims(ctx context.Context, performanceID int, seats []domain.Seat) ([]domain.SeatClaim, error) {
	if len(seats) == 0 {
		return nil, nil
	}

	fields := make([]string, len(seats))
	for i, seat := range seats {
		fields[i] = seatMember(seat)
	}

	values, err := l.client.HMGet(ctx, occupancyKey(performanceID), fields...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read seat holders: %w", err)
	}

	claims := make([]domain.SeatClaim, 0, len(seats))
	for i, value := range values {
		holder, ok := value.(string)
		if !ok {
			continue
		}

		claim, err := parseHolderValue(holder)
		if err != nil {
			return nil, err
		}
		claim.Seat = seats[i]

		claims = append(claims, claim)
	}

	return claims, nil
}

func (l *Redis) Restore(ctx context.Context, performanceID int, claims []domain.SeatClaim) error {
	if len(claims) == 0 {
		return nil
	}

	args := make([]any, 0, 2*len(claims))
	for _, claim := range claims {
		args = append(args, seatMember(claim.Seat), holderValue(claim.Owner, claim.ClaimedAt))
	}

	err := restoreSeatsScript.Run(ctx, l.client, []string{occupancyKey(performanceID)}, args...).Err()
	if err != nil {
		return fmt.Errorf("failed to run restoreSeatsScript: %w", err)
	}

	return nil
}

func occupancyKey(performanceID int) string {
	return fmt.Sprintf("ledger:performance:%d", performanceID)
}

// holderValue encodes a claim's owner and time. A zero time is written as 0.
func holderValue(owner string, claimedAt time.Time) string {
	var millis int64
	if !claimedAt.IsZero() {
		millis = claimedAt.UnixMilli()
	}

	return owner + "|" + strconv.FormatInt(millis, 10)
}

func parseHolderValue(value string) (domain.SeatClaim, error) {
	i := strings.LastIndexByte(value, '|')
	if i < 0 {
		return domain.SeatClaim{}, fmt.Errorf("malformed seat holder %q", value)
	}

	millis, err := strconv.ParseInt(value[i+1:], 10, 64)
	if err != nil {
		return domain.SeatClaim{}, fmt.Errorf("malformed seat holder %q: %w", value, err)
	}

	claim := domain.SeatClaim{Owner: value[:i]}
	if millis > 0 {
		claim.ClaimedAt = time.UnixMilli(millis).UTC()
	}

	return claim, nil
}

func seatMember(seat domain.Seat) string {
	return fmt.Sprintf("%d:%d", seat.Row, seat.Number)
}

func seatMembers(seats []domain.Seat) []any {
	members := make([]any, len(seats))
	for i, seat := range seats {
		members[i] = seatMember(seat)
	}

	return members
}

func parseSeatMembers(members []string) ([]domain.Seat, error) {
	seats := make([]domain.Seat, len(members))

	for i, member := range members {
		rowStr, numberStr, ok := strings.Cut(member, ":")
		if !ok {
			return nil, fmt.Errorf("malformed seat member %q", member)
		}

		row, err := strconv.Atoi(rowStr)
		if err != nil {
			return nil, fmt.Errorf("malformed seat member %q: %w", member, err)
		}

		number, err := strconv.Atoi(numberStr)
		if err != nil {
			return nil, fmt.Errorf("malformed seat member %q: %w", member, err)
		}

		seats[i] = domain.Seat{Row: row, Number: number}
	}

	return seats, nil
}
