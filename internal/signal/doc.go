// Package signal carries focus, visibility, revalidation and optimistic
// patch events to synchronization stores.
//
// Bus is the in-process source every store attaches to. Bridge relays JSON
// messages from NATS onto a Bus, and Publisher sends them from another
// process (the notify command):
//
//	<prefix>.revalidate  {"force":true}
//	<prefix>.optimistic  {"kind":"delta","idempotencyKey":"...","entityId":"0x...","fieldDeltas":{"ticketsSold":1}}
//	<prefix>.optimistic  {"kind":"create","idempotencyKey":"...","entityId":"0x...","fields":{"ticketPrice":"5"}}
package signal
