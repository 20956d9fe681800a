package config

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownKeys maps each section to its valid keys, read from the toml tags of
// Config so the two cannot drift apart.
var knownKeys = tomlKeys(reflect.TypeFor[Config]())

// knownSections is the sorted list of section names, for deterministic
// suggestions on ties.
var knownSections = slices.Sorted(maps.Keys(knownKeys))

func tomlKeys(cfg reflect.Type) map[string][]string {
	out := make(map[string][]string, cfg.NumField())

	for i := range cfg.NumField() {
		section := cfg.Field(i)

		name := section.Tag.Get("toml")
		if name == "" || section.Type.Kind() != reflect.Struct {
			continue
		}

		var keys []string
		for j := range section.Type.NumField() {
			if key := section.Type.Field(j).Tag.Get("toml"); key != "" {
				keys = append(keys, key)
			}
		}

		slices.Sort(keys)
		out[name] = keys
	}

	return out
}

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}

	var errs []error

	for _, key := range undecoded {
		errs = append(errs, buildKeyError(key.String()))
	}

	return errors.Join(errs...)
}

// buildKeyError describes an unknown key, suggesting the closest known
// section or section key.
func buildKeyError(keyStr string) error {
	section, field, nested := strings.Cut(keyStr, ".")

	if _, ok := knownKeys[section]; !ok || !nested {
		if suggestion := closestMatch(section, knownSections); suggestion != "" {
			return fmt.Errorf("unknown config key %q: did you mean %q?", keyStr, suggestion)
		}

		return fmt.Errorf("unknown config key %q", keyStr)
	}

	if suggestion := closestMatch(field, knownKeys[section]); suggestion != "" {
		return fmt.Errorf("unknown config key %q: did you mean %q?", keyStr, section+"."+suggestion)
	}

	return fmt.Errorf("unknown config key %q", keyStr)
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(unknown, k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
