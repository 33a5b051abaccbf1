// Package http provides the JSON transport for the recycling coordinator.
//
// Every route except the health check expects the upstream identity proxy to
// supply X-Actor-ID and X-Actor-Role. The router exposes:
//   - POST /points, GET /points?owner=me, GET /points/{id}, DELETE /points/{id},
//     POST /points/{id}/archive: point catalog endpoints exchanging the
//     `pointDTO` payload defined in point_handler.go.
//   - GET /points/available?lat=&lng=&max_km=: points the calling recycler may
//     claim, nearest first, with distance and owner profile attached.
//   - POST /claims, GET /claims?role=recycler|owner, GET /claims/{id}, POST /claims/{id}/cancel,
//     POST /claims/{id}/complete, POST /claims/archive: claim ledger
//     endpoints exchanging `claimDTO`. Claim mutations are rate limited per
//     actor.
//   - GET /stats/recycler: the caller's claim totals by status and month.
//   - PUT /profile: upserts the caller's display profile.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
