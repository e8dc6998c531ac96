package parser

import "strings"

// domainSuffixes maps type name suffixes to a domain-driven design role.
// Longer suffixes are listed before the shorter ones they end with.
var domainSuffixes = []struct {
	suffix string
	tag    string
}{
	{"AggregateRoot", "aggregate"},
	{"Aggregate", "aggregate"},
	{"Entity", "entity"},
	{"ValueObject", "value-object"},
	{"VO", "value-object"},
	{"Repository", "repository"},
	{"Repo", "repository"},
	{"DAO", "repository"},
	{"Dao", "repository"},
	{"Service", "service"},
	{"Controller", "controller"},
	{"Command", "command"},
	{"Cmd", "command"},
	{"Query", "query"},
	{"Handler", "handler"},
	{"Listener", "handler"},
	{"Factory", "factory"},
	{"Builder", "builder"},
	{"Exception", "exception"},
	{"Config", "configuration"},
	{"Configuration", "configuration"},
	{"Test", "test"},
}

// DomainTag classifies a type by naming convention. Types that match no
// known role are tagged with their lowercased simple name.
func DomainTag(typeName string) string {
	simple := typeName
	if i := strings.LastIndexByte(simple, '.'); i >= 0 {
		simple = simple[i+1:]
	}
	for _, s := range domainSuffixes {
		if len(simple) > len(s.suffix) && strings.HasSuffix(simple, s.suffix) {
			return s.tag
		}
	}
	return strings.ToLower(simple)
}
