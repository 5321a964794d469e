package model

import "strings"

// ItemStatus is the lifecycle state of a single request item
type ItemStatus string

const (
	// ItemNew is an item waiting to be grouped or submitted
	ItemNew ItemStatus = "NEW"
	// ItemPending is an item submitted to the vendor and awaiting a response
	ItemPending ItemStatus = "PENDING"
	// ItemValid passed every reconciliation rule
	ItemValid ItemStatus = "VALID"
	// ItemInvalid failed a reconciliation rule
	ItemInvalid ItemStatus = "INVALID"
	// ItemOnHold is valid data for a series that is not registered yet
	ItemOnHold ItemStatus = "ONHOLD"
	// ItemError is an item whose batch failed at the transport level
	ItemError ItemStatus = "ERROR"
)

// BatchStatus is the lifecycle state of a submission batch
type BatchStatus string

const (
	BatchNew     BatchStatus = "NEW"
	BatchPending BatchStatus = "PENDING"
	BatchDone    BatchStatus = "DONE"
	BatchError   BatchStatus = "ERROR"
)

// VendorStatus is the request status reported by the batch transport
type VendorStatus string

const (
	VendorInitial       VendorStatus = "INITIAL"
	VendorPending       VendorStatus = "PENDING"
	VendorSuccess       VendorStatus = "SUCCESS"
	VendorTransportFail VendorStatus = "BTERROR"
	VendorUpstreamFail  VendorStatus = "BBGERROR"
)

// IsTerminal reports whether the vendor has finished with the request.
// Anything other than INITIAL and PENDING is terminal.
func (s VendorStatus) IsTerminal() bool {
	return s != "" && s != VendorInitial && s != VendorPending
}

// IsError reports whether the status is one of the vendor error states
func (s VendorStatus) IsError() bool {
	return strings.Contains(string(s), "ERROR")
}
