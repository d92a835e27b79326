// Package engine provides the concurrent bank simulation.
// This package implements:
// - Ledger with an atomic conditional withdraw and unconditional deposit
// - Unbounded multi-producer/multi-consumer work queue
// - Teller workers and the teller pool that drains the queue
// - Customers that submit one transaction each
// - Bank orchestrator that sequences start-up, drain and shutdown
//
// Which withdrawals fail depends on how tellers interleave against the balance.
// The final balance is only deterministic with a single teller and sequential
// customers.
package engine
