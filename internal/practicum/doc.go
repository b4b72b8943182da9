// Package practicum talks to the homework review API and turns its
// responses into chat messages.
//
// The flow is split into three steps that the poller chains together:
//
//	raw, err := client.Fetch(ctx, cursor)   // HTTP GET, status + JSON checks
//	resp, err := practicum.CheckResponse(raw) // shape validation
//	msg, err := practicum.ParseStatus(hw)     // verdict lookup + formatting
//
// Fetch is the only step with I/O. CheckResponse and ParseStatus are pure.
package practicum
