// Package order provides the Order aggregate root of the fulfillment workflow.
//
// The package includes:
//   - Order: identity, current stage and the continuation token the stage awaits
//   - Status: the fixed stage graph and its transition rules
//   - Context: the payload carried between stages and snapshotted into the ledger
//
// Key business rules:
//   - stages are visited in the order Processing, InKitchen, KitchenDone,
//     Packed, OutForDelivery, Delivered
//   - a rejection in the kitchen phase re-enters Processing; in the delivery
//     phase it re-enters OutForDelivery
//   - Delivered and Failed are terminal
//   - an order awaits at most one continuation token at a time
package order
