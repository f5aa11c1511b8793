package domain

import "encoding/json"

type Decision int

const (
	Keep Decision = iota
	Adopt
)

func (d Decision) String() string {
	if d == Adopt {
		return "adopt"
	}
	return "keep"
}

const (
	ReasonRemoteAbsent       = "remote field absent"
	ReasonRemoteEmpty        = "remote value empty"
	ReasonShapeMismatch      = "remote shape mismatch"
	ReasonRemoteLonger       = "remote sequence longer"
	ReasonRemoteNotLonger    = "remote sequence not longer"
	ReasonLocalSessionActive = "local session in progress"
	ReasonNoLocalSession     = "no local session"
	ReasonLocalPresent       = "local value present"
	ReasonLocalEmpty         = "local value empty"
	ReasonLocalChanged       = "local value changed during load"
	ReasonLocalReadFailed    = "local read failed"
)

// Outcome is the merge decision for one key.
type Outcome struct {
	Key      LogicalKey
	Decision Decision
	Reason   string
}

// Resolve applies the merge policy for spec. local is the local value at the
// start of the sync cycle (nil when absent); remoteOK is false when the remote
// document has no such field. LocalCache is the source of truth: every branch
// that is not a clear improvement keeps local.
func Resolve(spec KeySpec, local, remote json.RawMessage, remoteOK bool) Outcome {
	decide := func(d Decision, reason string) Outcome {
		return Outcome{Key: spec.Key, Decision: d, Reason: reason}
	}

	if spec.Kind == KindActiveSession && HasStartTime(local) {
		return decide(Keep, ReasonLocalSessionActive)
	}
	if !remoteOK {
		return decide(Keep, ReasonRemoteAbsent)
	}
	remoteShape := ShapeOf(remote)
	if remoteShape == ShapeInvalid {
		return decide(Keep, ReasonShapeMismatch)
	}
	if remoteShape == ShapeNull {
		return decide(Keep, ReasonRemoteEmpty)
	}

	switch spec.Kind {
	case KindSequence:
		if remoteShape != ShapeArray {
			return decide(Keep, ReasonShapeMismatch)
		}
		if SequenceLen(remote) > SequenceLen(local) {
			return decide(Adopt, ReasonRemoteLonger)
		}
		return decide(Keep, ReasonRemoteNotLonger)

	case KindActiveSession:
		if remoteShape != ShapeObject || !HasStartTime(remote) {
			return decide(Keep, ReasonShapeMismatch)
		}
		return decide(Adopt, ReasonNoLocalSession)

	default:
		if IsEmpty(remote) {
			return decide(Keep, ReasonRemoteEmpty)
		}
		if !IsEmpty(local) {
			return decide(Keep, ReasonLocalPresent)
		}
		return decide(Adopt, ReasonLocalEmpty)
	}
}

// HasStartTime reports whether raw is an object with a non-null, non-empty
// "startTime" member.
func HasStartTime(raw json.RawMessage) bool {
	if ShapeOf(raw) != ShapeObject {
		return false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false
	}
	v, ok := fields["startTime"]
	if !ok || ShapeOf(v) != ShapeScalar {
		return false
	}
	return string(v) != `""`
}
