// Package server exposes the proxy over HTTP: a health route, an echo route,
// a multi-turn chat backed by the conversation store, and the single-turn
// pokemon and support runs. Errors are answered as {"message": ...} with the
// status carried by the failure.
package server
