package sydney

import "strings"

// Style names the option-set profile requested for a turn.
type Style string

const (
	StyleCreative Style = "creative"
	StyleBalanced Style = "balanced"
	StylePrecise  Style = "precise"
)

// DefaultStyle is used when the requested style is unknown.
const DefaultStyle = StyleBalanced

// Option-set profiles, one ordered flag list per style. Never mutate these;
// OptionsSets hands out copies.
var (
	creativeOptions = []string{
		"nlu_direct_response_filter",
		"deepleo",
		"disable_emoji_spoken_text",
		"responsible_ai_policy_235",
		"enablemm",
		"h3imaginative",
		"dtappid",
		"cricinfo",
		"cricinfov2",
		"dv3sugg",
		"clgalileo",
		"gencontentv3",
	}
	balancedOptions = []string{
		"nlu_direct_response_filter",
		"deepleo",
		"disable_emoji_spoken_text",
		"responsible_ai_policy_235",
		"enablemm",
		"galileo",
		"dtappid",
		"cricinfo",
		"cricinfov2",
		"dv3sugg",
	}
	preciseOptions = []string{
		"nlu_direct_response_filter",
		"deepleo",
		"disable_emoji_spoken_text",
		"responsible_ai_policy_235",
		"enablemm",
		"h3precise",
		"dtappid",
		"cricinfo",
		"cricinfov2",
		"dv3sugg",
		"clgalileo",
	}

	profiles = map[Style][]string{
		StyleCreative: creativeOptions,
		StyleBalanced: balancedOptions,
		StylePrecise:  preciseOptions,
	}
)

// SliceIDs are the fixed experiment slice identifiers sent with every request.
func SliceIDs() []string {
	return []string{"222dtappid", "225cricinfo", "224locals0"}
}

// ParseStyle normalizes a style name, falling back to DefaultStyle.
func ParseStyle(s string) Style {
	if style, ok := LookupStyle(s); ok {
		return style
	}
	return DefaultStyle
}

// LookupStyle normalizes a style name and reports whether it is known.
func LookupStyle(s string) (Style, bool) {
	style := Style(strings.ToLower(strings.TrimSpace(s)))
	_, ok := profiles[style]
	return style, ok
}

// OptionsSets returns a copy of the flag list for the style. Unknown styles
// resolve to the balanced profile.
func OptionsSets(style Style) []string {
	flags := profiles[ParseStyle(string(style))]
	out := make([]string, len(flags))
	copy(out, flags)
	return out
}

// Styles lists the known style names.
func Styles() []Style {
	return []Style{StyleCreative, StyleBalanced, StylePrecise}
}
