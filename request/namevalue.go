package request

import (
	"strings"

	"github.com/nvidia-uda/uda/wire"
)

// parseNameValueList parses the signal-embedded name/value grammar of
// spec.md §4.3: comma-separated `name=value` or `name="quoted value"`
// pairs, plus the `/name` shorthand for `name=true`, plus an optional
// leading `delimiter='c'` pair that overrides the separator for the rest
// of the list.
func parseNameValueList(expr string) (wire.NameValueList, error) {
	sep := byte(',')
	parts := splitTopLevel(expr, sep)

	if i := strings.IndexByte(expr, ','); i >= 0 {
		if name, value, _, ok := splitPair(strings.TrimSpace(expr[:i])); ok && strings.EqualFold(name, "delimiter") {
			v := strings.TrimSpace(value)
			if len(v) == 1 {
				sep = v[0]
				parts = splitTopLevel(expr[i+1:], sep)
			}
		}
	}

	var list wire.NameValueList
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.HasPrefix(p, "/") {
			list.Pairs = append(list.Pairs, wire.NameValue{Name: p[1:], Value: "true"})
			continue
		}
		name, value, quoted, ok := splitPair(p)
		if !ok {
			return wire.NameValueList{}, fails(NameValueSyntax, "malformed name/value pair %q", p)
		}
		list.Pairs = append(list.Pairs, wire.NameValue{Name: name, Value: value, Quoted: quoted})
	}
	return list, nil
}

func splitPair(p string) (name, value string, quoted, ok bool) {
	i := strings.IndexByte(p, '=')
	if i < 0 {
		return "", "", false, false
	}
	name = strings.TrimSpace(p[:i])
	value = strings.TrimSpace(p[i+1:])
	if len(value) >= 2 {
		if (value[0] == '\'' && value[len(value)-1] == '\'') || (value[0] == '"' && value[len(value)-1] == '"') {
			value = value[1 : len(value)-1]
			quoted = true
		}
	}
	if name == "" {
		return "", "", false, false
	}
	return name, value, quoted, true
}
