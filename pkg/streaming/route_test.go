package streaming

import (
	"testing"

	"mercator-hq/conduit/pkg/capability"
)

func TestSelectRoute(t *testing.T) {
	both := &capability.Capability{Model: "m", BackendSupportsStream: true, DirectSupportsStream: true}
	backendOnly := &capability.Capability{Model: "m", BackendSupportsStream: true}
	directOnly := &capability.Capability{Model: "m", DirectSupportsStream: true}
	none := &capability.Capability{Model: "m"}
	full := Availability{Backend: true, DirectKey: true}

	tests := []struct {
		name  string
		cap   *capability.Capability
		avail Availability
		prefs Preferences
		want  Method
		tier  string
	}{
		{
			name:  "direct preferred and confirmed",
			cap:   both,
			avail: full,
			prefs: Preferences{PreferDirectAPI: true},
			want:  MethodDirectTrueStream,
			tier:  CostDirect,
		},
		{
			name:  "direct preferred but unconfirmed",
			cap:   backendOnly,
			avail: full,
			prefs: Preferences{PreferDirectAPI: true, PreferTrueStreaming: true},
			want:  MethodBackendTrueStream,
			tier:  CostBackend,
		},
		{
			name:  "direct preferred without key",
			cap:   both,
			avail: Availability{Backend: true},
			prefs: Preferences{PreferDirectAPI: true, PreferTrueStreaming: true},
			want:  MethodBackendTrueStream,
			tier:  CostBackend,
		},
		{
			name:  "cost optimization keeps backend",
			cap:   both,
			avail: full,
			prefs: Preferences{PreferDirectAPI: true, PreferTrueStreaming: true, CostOptimization: true},
			want:  MethodBackendTrueStream,
			tier:  CostBackend,
		},
		{
			name:  "cost optimization without backend streaming",
			cap:   directOnly,
			avail: full,
			prefs: Preferences{PreferDirectAPI: true, CostOptimization: true},
			want:  MethodDirectTrueStream,
			tier:  CostDirect,
		},
		{
			name:  "backend true stream",
			cap:   both,
			avail: full,
			prefs: DefaultPreferences(),
			want:  MethodBackendTrueStream,
			tier:  CostBackend,
		},
		{
			name:  "direct when backend cannot stream",
			cap:   directOnly,
			avail: full,
			prefs: DefaultPreferences(),
			want:  MethodDirectTrueStream,
			tier:  CostDirect,
		},
		{
			name:  "true streaming disabled",
			cap:   both,
			avail: full,
			prefs: Preferences{FallbackToMock: true},
			want:  MethodBackendMockStream,
			tier:  CostBackend,
		},
		{
			name:  "backend without streaming",
			cap:   none,
			avail: full,
			prefs: DefaultPreferences(),
			want:  MethodBackendMockStream,
			tier:  CostBackend,
		},
		{
			name:  "backend capability but backend unavailable",
			cap:   backendOnly,
			avail: Availability{DirectKey: true},
			prefs: DefaultPreferences(),
			want:  MethodFallbackMockStream,
			tier:  CostMixed,
		},
		{
			name:  "nothing available",
			cap:   none,
			avail: Availability{},
			prefs: DefaultPreferences(),
			want:  MethodFallbackMockStream,
			tier:  CostMixed,
		},
		{
			name:  "nil capability",
			cap:   nil,
			avail: full,
			prefs: DefaultPreferences(),
			want:  MethodBackendMockStream,
			tier:  CostBackend,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectRoute(tt.cap, tt.avail, tt.prefs)
			if got.Method != tt.want {
				t.Errorf("method: got %s, want %s", got.Method, tt.want)
			}
			if got.CostTier != tt.tier {
				t.Errorf("cost tier: got %s, want %s", got.CostTier, tt.tier)
			}
			if got.Rationale == "" {
				t.Error("expected a rationale")
			}
		})
	}
}
