package sigma

import (
	"encoding/base64"
	"fmt"
	"net"
	"strings"
	"unicode/utf16"
)

// valueTransform rewrites the value list of a detection item, e.g. by
// base64-encoding each entry.
type valueTransform func([]string) []string

// modifierChain is the parsed result of a field's modifier list
// (e.g. "FieldName|contains|all"). Match-kind modifiers select how the
// value becomes a literal; transform modifiers rewrite the values.
type modifierChain struct {
	match         MatchKind
	stringMatch   bool // a match-kind modifier forces string treatment
	regex         bool
	compareOp     CompareOp
	exists        bool
	cidr          bool
	fieldRef      bool
	caseSensitive bool
	allOf         bool
	transforms    []valueTransform
}

// parseModifiers splits a field name with modifiers and returns the base
// field name plus the parsed chain. Unknown modifiers are an error: a
// modifier the converter does not understand would change what the rule
// matches if it were ignored.
func parseModifiers(fieldWithMods string) (string, *modifierChain, error) {
	parts := strings.Split(fieldWithMods, "|")
	field := parts[0]
	chain := &modifierChain{match: MatchExact}

	for _, mod := range parts[1:] {
		switch strings.ToLower(mod) {
		case "contains":
			chain.match = MatchSubstring
			chain.stringMatch = true
		case "startswith":
			chain.match = MatchPrefix
			chain.stringMatch = true
		case "endswith":
			chain.match = MatchSuffix
			chain.stringMatch = true
		case "re":
			chain.regex = true
		case "cidr":
			chain.cidr = true
		case "gt":
			chain.compareOp = CompareGT
		case "gte":
			chain.compareOp = CompareGTE
		case "lt":
			chain.compareOp = CompareLT
		case "lte":
			chain.compareOp = CompareLTE
		case "exists":
			chain.exists = true
		case "fieldref":
			chain.fieldRef = true
		case "cased":
			chain.caseSensitive = true
		case "all":
			chain.allOf = true
		case "base64":
			chain.transforms = append(chain.transforms, applyBase64)
		case "base64offset":
			chain.transforms = append(chain.transforms, applyBase64Offset)
		case "wide", "utf16", "utf16le":
			chain.transforms = append(chain.transforms, applyUTF16LE)
		case "utf16be":
			chain.transforms = append(chain.transforms, applyUTF16BE)
		case "windash":
			chain.transforms = append(chain.transforms, applyWindash)
		case "expand":
			// Placeholder expansion: values pass through as-is.
			// Real expansion requires environment variable context.
		default:
			return field, nil, fmt.Errorf("field %q: unknown modifier %q", field, mod)
		}
	}

	return field, chain, nil
}

// apply runs the transform chain over the values, including CIDR
// expansion when the |cidr modifier is present.
func (m *modifierChain) apply(values []string) ([]string, error) {
	for _, t := range m.transforms {
		values = t(values)
	}
	if m.cidr {
		expanded := make([]string, 0, len(values))
		for _, v := range values {
			patterns, err := expandCIDR(v)
			if err != nil {
				return nil, err
			}
			expanded = append(expanded, patterns...)
		}
		values = expanded
	}
	return values, nil
}

// expandCIDR rewrites an IPv4 network into wildcard prefix patterns,
// one per varying leading octet. 192.168.4.0/22 becomes 192.168.4.*
// through 192.168.7.*.
func expandCIDR(value string) ([]string, error) {
	ip, ipNet, err := net.ParseCIDR(value)
	if err != nil {
		return nil, fmt.Errorf("invalid CIDR value %q: %w", value, err)
	}
	v4 := ip.To4()
	if v4 == nil {
		return nil, fmt.Errorf("CIDR value %q: only IPv4 networks can be expanded to wildcards", value)
	}
	bits, _ := ipNet.Mask.Size()
	if bits == 32 {
		return []string{v4.String()}, nil
	}

	whole := bits / 8 // fully fixed octets
	rem := bits % 8   // fixed bits inside the next octet

	prefix := func(octets []byte) string {
		parts := make([]string, 0, len(octets)+1)
		for _, o := range octets {
			parts = append(parts, fmt.Sprintf("%d", o))
		}
		parts = append(parts, "*")
		return strings.Join(parts, ".")
	}

	if rem == 0 {
		return []string{prefix(v4[:whole])}, nil
	}

	// Enumerate the partially fixed octet.
	count := 1 << (8 - rem)
	base := int(v4[whole]) & ^(count - 1)
	patterns := make([]string, 0, count)
	for i := 0; i < count; i++ {
		octets := append(append([]byte{}, v4[:whole]...), byte(base+i))
		patterns = append(patterns, prefix(octets))
	}
	return patterns, nil
}

// applyBase64 replaces each value with its base64 encoding.
func applyBase64(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, base64.StdEncoding.EncodeToString([]byte(v)))
	}
	return out
}

// applyBase64Offset generates 3 alignment variants per value. A string
// base64-encoded at byte offset 0, 1 or 2 within a stream yields
// different character sequences; each variant keeps only the characters
// fully determined by the value's own bytes, so it can match inside a
// real encoded stream regardless of what surrounds the value.
func applyBase64Offset(values []string) []string {
	// Leading characters mixed with the alignment bytes per shift.
	starts := [3]int{0, 2, 3}
	out := make([]string, 0, len(values)*3)
	for _, v := range values {
		b := []byte(v)
		for shift := 0; shift < 3; shift++ {
			enc := base64.StdEncoding.EncodeToString(append(make([]byte, shift), b...))
			variant := enc[starts[shift]:]
			// A partial trailing group encodes bits shared with the
			// next stream byte plus = padding; both must go.
			switch (len(b) + shift) % 3 {
			case 1:
				variant = trimEnd(variant, 3)
			case 2:
				variant = trimEnd(variant, 2)
			}
			if variant != "" {
				out = append(out, variant)
			}
		}
	}
	return out
}

func trimEnd(s string, n int) string {
	if len(s) <= n {
		return ""
	}
	return s[:len(s)-n]
}

// applyUTF16LE re-encodes values as UTF-16LE byte strings.
func applyUTF16LE(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, encodeUTF16LE(v))
	}
	return out
}

// applyUTF16BE re-encodes values as UTF-16BE byte strings.
func applyUTF16BE(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, encodeUTF16BE(v))
	}
	return out
}

func encodeUTF16LE(s string) string {
	u16 := utf16.Encode([]rune(s))
	var buf strings.Builder
	for _, code := range u16 {
		buf.WriteByte(byte(code & 0xFF))
		buf.WriteByte(byte(code >> 8))
	}
	return buf.String()
}

func encodeUTF16BE(s string) string {
	u16 := utf16.Encode([]rune(s))
	var buf strings.Builder
	for _, code := range u16 {
		buf.WriteByte(byte(code >> 8))
		buf.WriteByte(byte(code & 0xFF))
	}
	return buf.String()
}

// applyWindash generates dash/slash variants for command-line arguments.
// For values starting with - it also adds the / variant, and vice versa.
func applyWindash(values []string) []string {
	out := make([]string, 0, len(values)*2)
	for _, v := range values {
		out = append(out, v)
		if strings.HasPrefix(v, "-") {
			out = append(out, "/"+v[1:])
		} else if strings.HasPrefix(v, "/") {
			out = append(out, "-"+v[1:])
		}
	}
	return out
}
