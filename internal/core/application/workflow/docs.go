// Package workflow runs the order-fulfillment state machine.
//
// The Orchestrator sequences six stage handlers (ProcesarPedido,
// PedidoEnCocina, CocinaCompleta, Empaquetado, Delivery, EntregaCompleta)
// together with the retry, failure and completion handlers.
//
// Suspension is a durable continuation: a stage handler writes the ledger
// record holding a fresh token and conditionally updates the order's pending
// token inside one unit of work, and only after that commit performs its
// external side effect (enqueue or publish). Resume is a separate call that
// redeems the token; a stale or already consumed token is a no-op.
package workflow
