package goals

import "strings"

// transformRule is an ordered (from, to) pair applied first as a prefix
// replacement, then as a global " from" → " to" replacement — in that
// order, for every rule in sequence, each operating on the prior rule's
// output. This mirrors the reference transform exactly, quirks included
// (a later rule can touch text a prior rule already replaced).
var transformRules = []struct{ from, to string }{
	// English: "I want to X" -> "I X"
	{"i want to ", "I "},
	{"i'd like to ", "I "},
	{"i would like to ", "I "},
	{"i hope to ", "I "},
	{"i wish to ", "I "},
	{"i need to ", "I "},
	{"i have to ", "I "},
	{"i'm going to ", "I "},
	{"i am going to ", "I "},
	{"i will ", "I "},
	{"i plan to ", "I "},
	{"my goal is to ", "I "},
	// "become" -> "am"
	{"become a ", "am a "},
	{"become an ", "am an "},
	{"become ", "am "},
	// "get" -> "have"
	{"get a ", "have a "},
	{"get an ", "have an "},
	// Russian
	{"хочу ", "я "},
	{"хотел бы ", "я "},
	{"хотела бы ", "я "},
	{"мне нужно ", "я "},
	{"я хочу ", "я "},
	{"планирую ", "я "},
	{"собираюсь ", "я "},
	{"моя цель - ", "я "},
	{"моя цель — ", "я "},
	// Russian verbs
	{"стать ", "являюсь "},
	{"получить ", "имею "},
	{"заработать ", "зарабатываю "},
	{"похудеть ", "вешу идеальный вес и "},
	{"научиться ", "умею "},
	{"выучить ", "знаю "},
}

// TransformToPresentTense rewrites a future/desire-tense goal statement
// into a first-person present-tense affirmation, e.g. "I want to become a
// Senior Developer" -> "I am a senior developer".
func TransformToPresentTense(original string) string {
	result := strings.ToLower(strings.TrimSpace(original))

	for _, rule := range transformRules {
		if strings.HasPrefix(result, rule.from) {
			result = rule.to + result[len(rule.from):]
		}
		result = strings.ReplaceAll(result, " "+rule.from, " "+rule.to)
	}

	return capitalizeFirst(result)
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
