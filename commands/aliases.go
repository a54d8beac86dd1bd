package commands

import (
	"sort"

	"github.com/agnivade/levenshtein"
)

// Group is the semantic command a set of aliases resolves to.
type Group int

const (
	GroupZero Group = iota + 1
	GroupClear
	GroupIncrement
	GroupTime
	GroupDate
	GroupInfo
	GroupShow
)

// maxSuggestDistance bounds how far a typo may be from a real alias.
const maxSuggestDistance = 2

var groupNames = map[Group]string{
	GroupZero:      "zero",
	GroupClear:     "clear",
	GroupIncrement: "increment",
	GroupTime:      "time",
	GroupDate:      "date",
	GroupInfo:      "info",
	GroupShow:      "show",
}

// String returns the canonical group name.
func (g Group) String() string {
	if name, ok := groupNames[g]; ok {
		return name
	}
	return "unknown"
}

// Aliases are case-sensitive and kept verbatim for existing publishers.
var groupAliases = []struct {
	group   Group
	aliases []string
}{
	{GroupZero, []string{"zero", "zeros", "zeroes", "z"}},
	{GroupClear, []string{"clear", "reset", "rst", "clr", "cls", "r"}},
	{GroupIncrement, []string{"increment", "i", "inc", "incr", "add"}},
	{GroupTime, []string{"time", "clock", "t"}},
	{GroupDate, []string{"date", "d"}},
	{GroupInfo, []string{"info", "v", "infos"}},
	{GroupShow, []string{"show", "display", "set", "s"}},
}

var aliasTable = buildAliasTable()

func buildAliasTable() map[string]Group {
	table := make(map[string]Group)
	for _, entry := range groupAliases {
		for _, alias := range entry.aliases {
			if _, dup := table[alias]; dup {
				panic("commands: duplicate alias " + alias)
			}
			table[alias] = entry.group
		}
	}
	return table
}

// Lookup resolves an alias to its group.
func Lookup(name string) (Group, bool) {
	group, ok := aliasTable[name]
	return group, ok
}

// Aliases returns every known alias in sorted order.
func Aliases() []string {
	out := make([]string, 0, len(aliasTable))
	for alias := range aliasTable {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out
}

// AliasesFor returns the aliases of one group in table order.
func AliasesFor(group Group) []string {
	for _, entry := range groupAliases {
		if entry.group == group {
			return append([]string(nil), entry.aliases...)
		}
	}
	return nil
}

// Suggest returns the closest known alias to name, if any is within
// maxSuggestDistance edits. Ties resolve to the alphabetically first alias.
func Suggest(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	best := ""
	bestDist := maxSuggestDistance + 1
	for _, alias := range Aliases() {
		if dist := levenshtein.ComputeDistance(name, alias); dist < bestDist {
			best = alias
			bestDist = dist
		}
	}
	return best, best != ""
}
