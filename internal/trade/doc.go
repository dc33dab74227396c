// Package trade validates and commits item swaps between two participants.
//
// A trade moves the requester's item to the target's owner and the target item
// to the requester. Engine.Execute checks, in order:
//
//  1. the requester owns an item (NO_OWN_ITEM)
//  2. the target item still exists (ITEM_UNAVAILABLE)
//  3. the two items differ (SAME_ITEM)
//  4. the two owners differ (SAME_OWNER)
//  5. the requester's item is worth at least the target (INSUFFICIENT_VALUE)
//  6. neither item has moved between these two owners before (ALREADY_TRADED)
//
// and then, inside the same store transaction, appends two ledger records with a
// shared timestamp and reassigns both owners. Values are compared with ParseValue,
// which treats unparseable text as zero.
package trade
