package ledger

import (
	"encoding/json"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// Status is the lifecycle state of a lottery contract.
type Status string

const (
	StatusOpen     Status = "open"
	StatusDrawing  Status = "drawing"
	StatusSettled  Status = "settled"
	StatusCanceled Status = "canceled"
	StatusUnknown  Status = "unknown"
)

// ParseStatus maps indexer spellings onto Status. Unrecognized values become StatusUnknown.
func ParseStatus(value string) Status {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "open", "active":
		return StatusOpen
	case "drawing", "pending_draw":
		return StatusDrawing
	case "settled", "completed", "drawn":
		return StatusSettled
	case "canceled", "cancelled":
		return StatusCanceled
	default:
		return StatusUnknown
	}
}

// UnmarshalJSON accepts any string and normalizes it through ParseStatus.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseStatus(raw)
	return nil
}

// Lottery mirrors one contract as reported by the indexer. Numeric fields
// are decimal strings of arbitrary size; timestamps are unix seconds.
type Lottery struct {
	ID             string `json:"id"`
	Status         Status `json:"status"`
	Creator        string `json:"creator"`
	Winner         string `json:"winner,omitempty"`
	TicketPrice    string `json:"ticketPrice"`
	TicketsSold    string `json:"ticketsSold"`
	MaxTickets     string `json:"maxTickets"`
	Pot            string `json:"pot"`
	CreatedAt      string `json:"createdAt"`
	EndsAt         string `json:"endsAt"`
	LastActivityAt string `json:"lastActivityAt"`
}

// ListResponse mirrors GET /v1/lotteries.
type ListResponse struct {
	Items      []Lottery `json:"items"`
	NextCursor string    `json:"nextCursor"`
}

// Sold returns TicketsSold as an integer (zero when unparseable).
func (l Lottery) Sold() *big.Int { return parseAmount(l.TicketsSold) }

// Price returns TicketPrice as an integer (zero when unparseable).
func (l Lottery) Price() *big.Int { return parseAmount(l.TicketPrice) }

// Capacity returns MaxTickets; zero means unlimited.
func (l Lottery) Capacity() *big.Int { return parseAmount(l.MaxTickets) }

// Progress returns the sold fraction in [0,1], or -1 when the lottery has no cap.
func (l Lottery) Progress() float64 {
	capacity := l.Capacity()
	if capacity.Sign() <= 0 {
		return -1
	}
	ratio, _ := new(big.Rat).SetFrac(l.Sold(), capacity).Float64()
	return min(max(ratio, 0), 1)
}

// ParsedCreatedAt returns the parsed CreatedAt timestamp.
func (l Lottery) ParsedCreatedAt() time.Time { return parseTime(l.CreatedAt) }

// ParsedEndsAt returns the parsed EndsAt timestamp.
func (l Lottery) ParsedEndsAt() time.Time { return parseTime(l.EndsAt) }

// ParsedLastActivity returns the parsed LastActivityAt timestamp.
func (l Lottery) ParsedLastActivity() time.Time { return parseTime(l.LastActivityAt) }

func parseAmount(value string) *big.Int {
	n, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return new(big.Int)
	}
	return n
}

func validAmount(value string) bool {
	n, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	return ok && n.Sign() >= 0
}

func unixString(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}

// parseTime accepts unix seconds or RFC3339.
func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC()
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

// NormalizeID lowercases and trims a contract address. It returns "" when
// value is not a 0x-prefixed hex string.
func NormalizeID(value string) string {
	id := strings.ToLower(strings.TrimSpace(value))
	if len(id) < 3 || !strings.HasPrefix(id, "0x") {
		return ""
	}
	for _, r := range id[2:] {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return ""
		}
	}
	return id
}
