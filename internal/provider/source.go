package provider

import (
	"fmt"
	"strings"
)

// Source enumerates the upstreams a Quote can come from.
type Source uint8

const (
	SourceUnknown Source = iota
	Binance
	OKX
	OKJ
	Google
)

var sourceNames = map[Source]string{
	Binance: "binance",
	OKX:     "okx",
	OKJ:     "okj",
	Google:  "google",
}

// Sources lists every known source in display order.
func Sources() []Source { return []Source{Binance, OKX, OKJ, Google} }

func (s Source) String() string {
	if n, ok := sourceNames[s]; ok {
		return n
	}
	return "unknown"
}

// DisplayName is the exchange label used in API payloads.
func (s Source) DisplayName() string {
	switch s {
	case Binance:
		return "Binance"
	case OKX:
		return "OKX"
	case OKJ:
		return "OKJ"
	case Google:
		return "Google"
	default:
		return "Unknown"
	}
}

// ParseSource accepts the lower-case source name, case-insensitively.
func ParseSource(s string) (Source, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for src, name := range sourceNames {
		if name == want {
			return src, nil
		}
	}
	return SourceUnknown, fmt.Errorf("unknown source %q", s)
}

func (s Source) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Source) UnmarshalText(b []byte) error {
	v, err := ParseSource(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
