// Package ledger provides the lottery entity and an HTTP client for the
// indexing service that reports lottery contracts.
//
// # Entity
//
// Lottery mirrors one contract. Amounts (ticket price, tickets sold, pot)
// are decimal strings so values larger than 64 bits survive the round trip;
// helpers such as Sold and Price parse them with math/big. Timestamps are
// unix seconds, with RFC3339 accepted as a fallback.
//
// Schema plugs lotteries into a syncstore.Store. It orders the list by most
// recent activity, treats status, tickets sold, pot, winner and last activity
// as the fields that matter for change detection, and implements both
// optimistic patch kinds:
//
//   - delta: ticketsSold (or pot) += n, pot recomputed as price x sold,
//     last activity stamped with the patch time
//   - create: a new open lottery with zero sales unless fields say otherwise
//
// # Client
//
//	client, err := ledger.NewClient("http://127.0.0.1:4350")
//	if err != nil {
//		return err
//	}
//	items, err := client.Fetch(ctx, syncstore.Query{Limit: 100})
//
// The client issues GET /v1/lotteries?limit=N&cursor=C. Error responses come
// back as *StatusError, which carries the status code and any Retry-After
// hint so the store can classify rate limiting. Undecodable bodies wrap
// ErrMalformedResponse. Entries without a 0x-prefixed hex id are dropped and
// ids are lowercased.
//
// The client performs no retries and no caching; refresh cadence and backoff
// belong to the store.
package ledger
