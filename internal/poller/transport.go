package poller

import "context"

// Transport reads and writes raw field values for one protocol (OPC-UA
// node IDs, Modbus registers, ...). The poller itself never depends on a
// concrete protocol client: each deployment wires in whichever Transport
// implementations it needs, keyed by the protocol name a Mapping's
// NodeOrAddress belongs to.
type Transport interface {
	// Read returns the current raw value at address.
	Read(ctx context.Context, address string) (any, error)
	// Write sets address to value. Returns an error if the transport or
	// the underlying device rejects the write.
	Write(ctx context.Context, address string, value any) error
}

// ElementValueSink is the write-through target for a debounced value
// commit: applies the conversion's output to the element and persists it.
type ElementValueSink interface {
	CommitValue(ctx context.Context, submodelID, idShortPath string, value any) error
}

// ElementValueSource lets a writable mapping observe element-value change
// events so it can push writes back out to the field.
type ElementValueSource interface {
	// Subscribe registers handler to be called whenever the element at
	// submodelID/idShortPath changes, returning an unsubscribe function.
	Subscribe(submodelID, idShortPath string, handler func(ctx context.Context, value any)) (unsubscribe func())
}
