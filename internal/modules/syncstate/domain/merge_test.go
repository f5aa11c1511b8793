package domain

import (
	"encoding/json"
	"testing"
)

func raw(s string) json.RawMessage { return json.RawMessage(s) }

func TestResolveSequenceAdoptsOnlyLongerRemote(t *testing.T) {
	t.Parallel()
	spec := KeySpec{Key: KeyStudySessions, Kind: KindSequence}
	local := raw(`[1,2,3]`)

	cases := []struct {
		name     string
		remote   json.RawMessage
		remoteOK bool
		want     Decision
		reason   string
	}{
		{name: "longer", remote: raw(`[1,2,3,4,5]`), remoteOK: true, want: Adopt, reason: ReasonRemoteLonger},
		{name: "shorter", remote: raw(`[1,2]`), remoteOK: true, want: Keep, reason: ReasonRemoteNotLonger},
		{name: "equal", remote: raw(`[9,9,9]`), remoteOK: true, want: Keep, reason: ReasonRemoteNotLonger},
		{name: "absent", remoteOK: false, want: Keep, reason: ReasonRemoteAbsent},
		{name: "null", remote: raw(`null`), remoteOK: true, want: Keep, reason: ReasonRemoteEmpty},
		{name: "object", remote: raw(`{"a":1}`), remoteOK: true, want: Keep, reason: ReasonShapeMismatch},
		{name: "garbage", remote: raw(`{`), remoteOK: true, want: Keep, reason: ReasonShapeMismatch},
	}
	for _, tc := range cases {
		got := Resolve(spec, local, tc.remote, tc.remoteOK)
		if got.Decision != tc.want || got.Reason != tc.reason {
			t.Fatalf("%s: expected %s/%s, got %s/%s", tc.name, tc.want, tc.reason, got.Decision, got.Reason)
		}
	}
}

func TestResolveSequenceTreatsNonArrayLocalAsEmpty(t *testing.T) {
	t.Parallel()
	spec := KeySpec{Key: KeyNotes, Kind: KindSequence}
	if got := Resolve(spec, nil, raw(`["a"]`), true); got.Decision != Adopt {
		t.Fatalf("absent local should adopt non-empty remote, got %+v", got)
	}
	if got := Resolve(spec, raw(`"broken"`), raw(`["a"]`), true); got.Decision != Adopt {
		t.Fatalf("scalar local should adopt remote array, got %+v", got)
	}
	if got := Resolve(spec, nil, raw(`[]`), true); got.Decision != Keep {
		t.Fatalf("empty remote must not be adopted, got %+v", got)
	}
}

func TestResolveActiveSessionProtectsLocalSession(t *testing.T) {
	t.Parallel()
	spec := KeySpec{Key: KeyActiveSession, Kind: KindActiveSession}
	local := raw(`{"startTime":"2026-03-01T10:00:00Z","accumulatedSeconds":0,"resumedAt":"2026-03-01T10:00:00Z"}`)
	remotes := []json.RawMessage{
		raw(`{"startTime":"2026-03-01T09:00:00Z","accumulatedSeconds":9999,"resumedAt":null}`),
		raw(`null`),
		raw(`[1]`),
		nil,
	}
	for _, remote := range remotes {
		got := Resolve(spec, local, remote, remote != nil)
		if got.Decision != Keep || got.Reason != ReasonLocalSessionActive {
			t.Fatalf("remote %s: expected local session kept, got %+v", remote, got)
		}
	}
}

func TestResolveActiveSessionAdoptsWhenIdle(t *testing.T) {
	t.Parallel()
	spec := KeySpec{Key: KeyActiveSession, Kind: KindActiveSession}
	remote := raw(`{"startTime":"2026-03-01T09:00:00Z","accumulatedSeconds":12,"resumedAt":null}`)
	for _, local := range []json.RawMessage{nil, raw(`null`), raw(`{}`), raw(`{"startTime":null}`)} {
		if got := Resolve(spec, local, remote, true); got.Decision != Adopt {
			t.Fatalf("local %s: expected adopt, got %+v", local, got)
		}
	}
	if got := Resolve(spec, nil, raw(`null`), true); got.Decision != Keep {
		t.Fatalf("null remote must be kept local, got %+v", got)
	}
	if got := Resolve(spec, nil, raw(`{"subjectId":"x"}`), true); got.Decision != Keep {
		t.Fatalf("remote without start time must be kept local, got %+v", got)
	}
}

func TestResolveSingletonFillsOnlyEmptyLocal(t *testing.T) {
	t.Parallel()
	spec := KeySpec{Key: KeySettings, Kind: KindSingleton}
	remote := raw(`{"theme":"dark"}`)
	for _, local := range []json.RawMessage{nil, raw(`null`), raw(`{}`), raw(`[]`), raw(`""`)} {
		if got := Resolve(spec, local, remote, true); got.Decision != Adopt {
			t.Fatalf("local %q: expected adopt, got %+v", local, got)
		}
	}
	if got := Resolve(spec, raw(`{"theme":"light"}`), remote, true); got.Decision != Keep || got.Reason != ReasonLocalPresent {
		t.Fatalf("present local must be kept, got %+v", got)
	}
	if got := Resolve(spec, nil, raw(`{}`), true); got.Decision != Keep || got.Reason != ReasonRemoteEmpty {
		t.Fatalf("empty remote must be kept local, got %+v", got)
	}
}

func TestResolveMonotonicLength(t *testing.T) {
	t.Parallel()
	spec := KeySpec{Key: KeyDailyTasks, Kind: KindSequence}
	arrays := []json.RawMessage{raw(`[]`), raw(`[1]`), raw(`[1,2]`), raw(`[1,2,3]`)}
	for _, local := range arrays {
		for _, remote := range arrays {
			got := Resolve(spec, local, remote, true)
			adopted := local
			if got.Decision == Adopt {
				adopted = remote
			}
			want := SequenceLen(local)
			if SequenceLen(remote) > want {
				want = SequenceLen(remote)
			}
			if SequenceLen(adopted) != want {
				t.Fatalf("local %s remote %s: adopted length %d, want %d", local, remote, SequenceLen(adopted), want)
			}
		}
	}
}
