// Package ledger is the share registry state machine.
//
// It owns properties, share tokens, the per-wallet holding ledger, KYC flags
// and the pause flag, and it enforces every issuance and transfer rule. It
// performs no I/O and takes no locks: callers serialise access.
//
// A mutation is split in two steps:
//
//	ev, err := state.Decide(cmd) // read-only: checks every precondition
//	err = state.Apply(ev)        // mutation: cannot fail for a decided event
//
// Decide never changes state, so a rejected command leaves the ledger exactly
// as it was. Apply is also how a journal is replayed into a fresh State.
//
// Invariants held after every Apply:
//   - MintedShares(p) <= TotalShares(p)
//   - Holding(w, p) <= TotalShares(p) / 10 for every wallet w
//   - Holding(w, p) equals the sum of shares of live tokens w owns in p
package ledger
