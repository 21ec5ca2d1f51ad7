// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

/*
Package httppot implements the HTTP deception service.

It presents a plausible WordPress site: a blog front page, a login form that
always rejects credentials (but keeps them), an XML-RPC endpoint, and a set
of bait files with fabricated secrets. Every request that reaches the router
is classified and persisted as an attack record before its handler runs, so
even a request that only yields a 404 leaves a trace.
*/
package httppot
