// Package protocol owns the WAF engine wire contract.
//
// Ownership boundary:
// - frame layout: one type byte, big-endian uint32 body length, JSON body
// - request/response type tags
// - incremental decoding over a partially-read byte stream
package protocol
