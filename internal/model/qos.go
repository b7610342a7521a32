package model

import "context"

// QoS is the scheduling class a remote operation runs under.
type QoS int

const (
	// QoSDefault is used for single-record saves and fetches.
	QoSDefault QoS = iota
	// QoSUserInitiated marks user-visible work such as a "Back Up Now" batch.
	QoSUserInitiated
)

// String returns the QoS label used in logs and metrics.
func (q QoS) String() string {
	if q == QoSUserInitiated {
		return "user_initiated"
	}
	return "default"
}

type qosKey struct{}

// WithQoS returns ctx tagged with q.
func WithQoS(ctx context.Context, q QoS) context.Context {
	return context.WithValue(ctx, qosKey{}, q)
}

// QoSFrom returns the QoS tag carried by ctx, or QoSDefault.
func QoSFrom(ctx context.Context) QoS {
	if q, ok := ctx.Value(qosKey{}).(QoS); ok {
		return q
	}
	return QoSDefault
}
