package model

import "strings"

// GroupName is the sentinel display name for conversations with more than two
// participants. Every group conversation shares it, so a by-name lookup for
// "Group" can legitimately match several unrelated conversations; callers must
// treat name lookups as multi-match.
const GroupName = "Group"

// DeriveName computes a conversation's display name from its participants'
// usernames in membership insertion order: up to two participants get the
// concatenation of their usernames, larger sets collapse to GroupName.
//
// Note a two-user conversation between e.g. "g" and "roup" also derives to
// "Group"; the name is display data, not an identity.
func DeriveName(usernames []string) string {
	if len(usernames) > 2 {
		return GroupName
	}
	return strings.Join(usernames, "")
}
