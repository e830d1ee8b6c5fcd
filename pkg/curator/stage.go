// Copyright 2022-2026 aquova et al.

package curator

// Stage classifies a channel's place in the publication pipeline.
type Stage int

const (
	StageUnhandled Stage = iota
	StageListening
	StageVerification
	StageSelfCurated
	StageShowcase
)

func (s Stage) String() string {
	switch s {
	case StageListening:
		return "listening"
	case StageVerification:
		return "verification"
	case StageSelfCurated:
		return "self_curated"
	case StageShowcase:
		return "showcase"
	default:
		return "unhandled"
	}
}

// StageMap classifies channel IDs by membership in the configured channel
// sets. It is built once from read-only config and safe for concurrent use.
type StageMap struct {
	verification map[string]struct{}
	selfCurated  map[string]struct{}
	showcase     map[string]struct{}
	listening    map[string]struct{}
}

// NewStageMap builds a StageMap from the configured channel sets.
func NewStageMap(cfg ChannelConfig) *StageMap {
	return &StageMap{
		verification: toSet([]string{cfg.Verification}),
		selfCurated:  toSet(cfg.SelfCurated),
		showcase:     toSet([]string{cfg.Showcase}),
		listening:    toSet(cfg.Listening),
	}
}

// Classify maps a channel ID to its Stage. Classification is total and
// deterministic; precedence is verification, self-curated, showcase,
// listening, and everything else is unhandled.
func (sm *StageMap) Classify(channelID string) Stage {
	switch {
	case contains(sm.verification, channelID):
		return StageVerification
	case contains(sm.selfCurated, channelID):
		return StageSelfCurated
	case contains(sm.showcase, channelID):
		return StageShowcase
	case contains(sm.listening, channelID):
		return StageListening
	default:
		return StageUnhandled
	}
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

func contains(set map[string]struct{}, id string) bool {
	_, ok := set[id]
	return ok
}
