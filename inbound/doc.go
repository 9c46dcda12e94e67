// Package inbound exposes the HTTP surface: the provider webhook endpoint,
// checkout session creation and a health probe.
//
// The webhook body is read in full and handed over as raw bytes so the
// signature is checked against exactly what was received.
package inbound
