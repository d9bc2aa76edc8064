package grab

import (
	"fmt"
	"math/rand/v2"
)

type AuthMode int

const (
	AuthNone AuthMode = iota
	AuthCookieJar
	AuthDelegatedToken
)

func (m AuthMode) String() string {
	switch m {
	case AuthNone:
		return "none"
	case AuthCookieJar:
		return "cookie_jar"
	case AuthDelegatedToken:
		return "delegated_token"
	default:
		panic(fmt.Sprintf("unsupported auth mode %d", int(m)))
	}
}

// FetchCandidate is one attempt unit: a locator plus how to reach and
// authenticate against it. Candidates are generated fresh per run and never
// persisted.
type FetchCandidate struct {
	Locator              string
	AlternateNetworkPath bool
	Auth                 AuthMode
}

const (
	defaultWatchURLFormat   = "https://www.youtube.com/watch?v=%s"
	companionWatchURLFormat = "https://music.youtube.com/watch?v=%s"
	mirrorWatchURLFormat    = "%s/watch?v=%s"
)

// SearchLocator asks the fetch primitive to search its own catalog and take
// the first hit. It ignores the source id entirely, which makes it the
// broadest and least precise tier: it can match the wrong recording.
func SearchLocator(title, artist string) string {
	return fmt.Sprintf("ytsearch1:%s %s official audio", title, artist)
}

// Generator encodes the fallback policy as an ordered candidate sequence,
// cheapest and most specific tiers first.
type Generator struct {
	Mirrors           []string
	HasCookieJar      bool
	HasDelegatedToken bool
}

// Generate produces the candidate sequence for one run. Tiers whose
// prerequisite data is absent are skipped. The mirror sub-list is shuffled
// per run to spread load across mirrors.
func (g Generator) Generate(t TrackDescriptor) []FetchCandidate {
	var out []FetchCandidate

	if t.SourceID != "" {
		directLocator := fmt.Sprintf(defaultWatchURLFormat, t.SourceID)
		out = append(out,
			FetchCandidate{Locator: directLocator, AlternateNetworkPath: false, Auth: AuthNone},
			FetchCandidate{Locator: fmt.Sprintf(companionWatchURLFormat, t.SourceID), AlternateNetworkPath: false, Auth: AuthNone},
		)

		mirrors := append([]string(nil), g.Mirrors...)
		rand.Shuffle(len(mirrors), func(i, j int) { mirrors[i], mirrors[j] = mirrors[j], mirrors[i] })
		for _, m := range mirrors {
			out = append(out, FetchCandidate{
				Locator:              fmt.Sprintf(mirrorWatchURLFormat, m, t.SourceID),
				AlternateNetworkPath: true,
				Auth:                 AuthNone,
			})
		}
	}

	if t.Title != "" {
		out = append(out, FetchCandidate{Locator: SearchLocator(t.Title, t.Artist), AlternateNetworkPath: false, Auth: AuthNone})
	}

	if t.SourceID != "" {
		directLocator := fmt.Sprintf(defaultWatchURLFormat, t.SourceID)
		if g.HasCookieJar {
			out = append(out, FetchCandidate{Locator: directLocator, AlternateNetworkPath: false, Auth: AuthCookieJar})
		}
		if g.HasDelegatedToken {
			out = append(out, FetchCandidate{Locator: directLocator, AlternateNetworkPath: false, Auth: AuthDelegatedToken})
		}
	}

	return out
}
