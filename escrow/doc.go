// Package escrow settles energy trades between a producer and a consumer
// through a ledger.
//
// A Contract moves through Pending, InEscrow and then exactly one of
// Completed or Penalized:
//
//	Pending --InitiateTrade--> InEscrow --ConfirmDelivery--> Completed
//	                              |
//	                              +-----PenaliseProducer---> Penalized
//
// InitiateTrade queues the consumer's payment into the escrow party.
// ConfirmDelivery releases it to the producer once the delivery time is
// reached. PenaliseProducer becomes eligible only after the delivery time
// plus a grace period and refunds the consumer minus a penalty (10% by
// default) paid to the producer. The amount released always equals the
// amount placed in escrow.
//
// Refused transitions return an error wrapping ErrInvalidTransition and
// change nothing. Each check-then-set runs under the contract's own lock,
// so concurrent settlement calls cannot both succeed.
//
// # Pricing
//
// In ModeStatic the price per unit is the base price and the grace period
// is 60 seconds. In ModeDynamic the base price is multiplied by a market
// factor drawn from [0.9, 1.1) and the grace period is 10 seconds. Both can
// be overridden with WithPricer and WithGracePeriod. MonitorPrice keeps
// repricing until delivery without touching the escrowed amount.
//
// All time comes from an injected clockwork.Clock, so tests drive deadlines
// with a fake clock instead of sleeping.
package escrow
