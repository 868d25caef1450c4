package ledger

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/five82/lotwatch/internal/syncstore"
)

// Delta field names accepted by ApplyDelta.
const (
	FieldTicketsSold = "ticketsSold"
	FieldPot         = "pot"
)

// Schema describes lotteries to a syncstore.Store: keyed by contract
// address, ordered newest activity first.
func Schema() syncstore.Schema[Lottery] {
	return syncstore.Schema[Lottery]{
		ID:         func(l Lottery) string { return l.ID },
		Signature:  signature,
		Less:       less,
		ApplyDelta: applyDelta,
		Synthesize: synthesize,
	}
}

// signature covers the fields the UI renders.
func signature(l Lottery) string {
	return strings.Join([]string{
		string(l.Status),
		l.TicketsSold,
		l.Pot,
		l.Winner,
		l.LastActivityAt,
	}, "|")
}

func less(a, b Lottery) bool {
	if c := parseAmount(a.LastActivityAt).Cmp(parseAmount(b.LastActivityAt)); c != 0 {
		return c > 0
	}
	return a.ID < b.ID
}

func applyDelta(l Lottery, deltas map[string]int64, now time.Time) (Lottery, error) {
	sold := l.Sold()
	pot := parseAmount(l.Pot)
	soldChanged := false
	for field, d := range deltas {
		switch field {
		case FieldTicketsSold, "sold":
			sold.Add(sold, big.NewInt(d))
			soldChanged = true
		case FieldPot:
			pot.Add(pot, big.NewInt(d))
		default:
			return Lottery{}, fmt.Errorf("unsupported delta field %q", field)
		}
	}
	if sold.Sign() < 0 {
		return Lottery{}, fmt.Errorf("tickets sold would become %s", sold)
	}
	if capacity := l.Capacity(); capacity.Sign() > 0 && sold.Cmp(capacity) > 0 {
		return Lottery{}, fmt.Errorf("tickets sold %s exceeds max %s", sold, capacity)
	}
	if price := l.Price(); soldChanged && price.Sign() > 0 {
		pot.Mul(price, sold)
	}
	if pot.Sign() < 0 {
		return Lottery{}, fmt.Errorf("pot would become %s", pot)
	}

	l.TicketsSold = sold.String()
	l.Pot = pot.String()
	l.LastActivityAt = unixString(now)
	return l, nil
}

func synthesize(id string, fields map[string]string, now time.Time) (Lottery, error) {
	normalized := NormalizeID(id)
	if normalized == "" {
		return Lottery{}, fmt.Errorf("invalid lottery id %q", id)
	}
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(fields[key]); v != "" {
			return v
		}
		return fallback
	}

	l := Lottery{
		ID:             normalized,
		Status:         ParseStatus(get("status", string(StatusOpen))),
		Creator:        strings.ToLower(get("creator", "")),
		Winner:         strings.ToLower(get("winner", "")),
		TicketPrice:    get("ticketPrice", "0"),
		TicketsSold:    get("ticketsSold", "0"),
		MaxTickets:     get("maxTickets", "0"),
		CreatedAt:      get("createdAt", unixString(now)),
		EndsAt:         get("endsAt", ""),
		LastActivityAt: unixString(now),
	}
	for name, value := range map[string]string{
		"ticketPrice": l.TicketPrice,
		"ticketsSold": l.TicketsSold,
		"maxTickets":  l.MaxTickets,
	} {
		if !validAmount(value) {
			return Lottery{}, fmt.Errorf("field %s: %q is not a non-negative integer", name, value)
		}
	}
	l.Pot = get("pot", new(big.Int).Mul(l.Price(), l.Sold()).String())
	if !validAmount(l.Pot) {
		return Lottery{}, fmt.Errorf("field pot: %q is not a non-negative integer", l.Pot)
	}
	return l, nil
}
