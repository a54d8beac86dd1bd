package commands

import "testing"

func TestLookupAliases(t *testing.T) {
	cases := map[string]Group{
		"zero": GroupZero, "zeros": GroupZero, "zeroes": GroupZero, "z": GroupZero,
		"clear": GroupClear, "reset": GroupClear, "rst": GroupClear, "clr": GroupClear, "cls": GroupClear, "r": GroupClear,
		"increment": GroupIncrement, "i": GroupIncrement, "inc": GroupIncrement, "incr": GroupIncrement, "add": GroupIncrement,
		"time": GroupTime, "clock": GroupTime, "t": GroupTime,
		"date": GroupDate, "d": GroupDate,
		"info": GroupInfo, "v": GroupInfo, "infos": GroupInfo,
		"show": GroupShow, "display": GroupShow, "set": GroupShow, "s": GroupShow,
	}
	for alias, want := range cases {
		got, ok := Lookup(alias)
		if !ok || got != want {
			t.Fatalf("Lookup(%q) = %v,%t want %v", alias, got, ok, want)
		}
	}
	if len(Aliases()) != len(cases) {
		t.Fatalf("expected %d aliases, got %d", len(cases), len(Aliases()))
	}
}

func TestLookupIsCaseSensitive(t *testing.T) {
	for _, name := range []string{"ZERO", "Time", "", "state", "start", "clock/time"} {
		if _, ok := Lookup(name); ok {
			t.Fatalf("expected %q to be unknown", name)
		}
	}
}

func TestAliasesForGroup(t *testing.T) {
	got := AliasesFor(GroupDate)
	if len(got) != 2 || got[0] != "date" || got[1] != "d" {
		t.Fatalf("unexpected date aliases: %v", got)
	}
	if AliasesFor(Group(99)) != nil {
		t.Fatalf("expected no aliases for unknown group")
	}
	if Group(99).String() != "unknown" || GroupShow.String() != "show" {
		t.Fatalf("unexpected group names")
	}
}

func TestSuggest(t *testing.T) {
	if got, ok := Suggest("tme"); !ok || got != "time" {
		t.Fatalf("expected suggestion time, got %q (%t)", got, ok)
	}
	if got, ok := Suggest("incremnt"); !ok || got != "increment" {
		t.Fatalf("expected suggestion increment, got %q (%t)", got, ok)
	}
	if _, ok := Suggest("completely-unrelated"); ok {
		t.Fatalf("expected no suggestion for distant input")
	}
	if _, ok := Suggest(""); ok {
		t.Fatalf("expected no suggestion for empty input")
	}
}
