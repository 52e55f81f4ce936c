// Package ledger implements an append-only, hash-chained transaction log
// sealed by proof-of-work.
//
// # Core Components
//
// Blockchain: the ordered sequence of sealed blocks plus a buffer of pending
// transactions. It owns the proof-of-work admission rule and chain validity
// checks. All mutation goes through a single mutex; the nonce search runs
// outside it so submitting transactions is never blocked by mining.
//
// Block: a batch of transactions with its index, timestamp, nonce and a link
// to the previous block's digest.
//
// Transaction: a three-field record moving an amount from one party to
// another. Mining rewards are issued by Mint, the absent sender.
//
// # Digests
//
// A block digest is the lowercase hex SHA-256 of a canonical JSON encoding of
// index, nonce, previous_hash, timestamp and transactions, with sorted keys,
// ", " and ": " separators, ASCII-only string escaping and shortest
// round-trip reals. Any implementation producing the same bytes computes the
// same digest for the same block.
//
// # Security Properties
//
// The chain provides:
//   - Verifiability: Verify recomputes every digest and link
//   - Tamper detection: editing any sealed field breaks the hash chain
//   - Admission delay: every non-genesis digest starts with Difficulty zeros
//
// The chain does not track balances or sign transactions.
//
// # Usage
//
// Create a blockchain with NewBlockchain, submit transactions with
// CreateTransaction, and seal them with MinePendingTransactions. An optional
// BlockStore mirrors sealed blocks for lookups by index or digest.
package ledger
