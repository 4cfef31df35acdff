package canonical

import (
	"fmt"
	"strings"

	"github.com/gowebpki/jcs"
)

// Profile selects how a business payload is serialised before encryption.
type Profile int

const (
	// ProfileOrdered is compact JSON in insertion order. This is what the bank's gateway expects.
	ProfileOrdered Profile = iota

	// ProfileJCS is the RFC 8785 JSON Canonicalization Scheme (sorted keys, normalised numbers),
	// for counterparties that canonicalise before comparing.
	ProfileJCS
)

func (p Profile) String() string {
	switch p {
	case ProfileOrdered:
		return "ordered"
	case ProfileJCS:
		return "jcs"
	default:
		return fmt.Sprintf("Profile(%d)", int(p))
	}
}

// ParseProfile parses "ordered" or "jcs". The empty string is ProfileOrdered.
func ParseProfile(s string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ordered":
		return ProfileOrdered, nil
	case "jcs":
		return ProfileJCS, nil
	default:
		return ProfileOrdered, fmt.Errorf("unknown payload profile %q (expected ordered or jcs)", s)
	}
}

func (p Profile) apply(compact []byte) ([]byte, error) {
	switch p {
	case ProfileOrdered:
		return compact, nil
	case ProfileJCS:
		out, err := jcs.Transform(compact)
		if err != nil {
			return nil, fmt.Errorf("failed to canonicalize payload: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown payload profile %d", int(p))
	}
}
