package config

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// suggestDistance bounds how far a typo may be from a real key and still
// get a "did you mean" hint.
const suggestDistance = 3

// schema lists the keys of every section, read from the toml tags of
// Config so a new field is accepted as soon as it exists.
var schema = buildSchema(reflect.TypeFor[Config]())

func buildSchema(t reflect.Type) map[string][]string {
	out := make(map[string][]string, t.NumField())

	for sf := range fieldsOf(t) {
		section := tomlName(sf)
		if section == "" || sf.Type.Kind() != reflect.Struct {
			continue
		}

		var keys []string
		for kf := range fieldsOf(sf.Type) {
			if k := tomlName(kf); k != "" {
				keys = append(keys, k)
			}
		}

		slices.Sort(keys)
		out[section] = keys
	}

	return out
}

func fieldsOf(t reflect.Type) func(func(reflect.StructField) bool) {
	return func(yield func(reflect.StructField) bool) {
		for i := range t.NumField() {
			if !yield(t.Field(i)) {
				return
			}
		}
	}
}

func tomlName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
	if name == "-" {
		return ""
	}

	return name
}

func sectionNames() []string {
	names := make([]string, 0, len(schema))
	for s := range schema {
		names = append(names, s)
	}

	slices.Sort(names)

	return names
}

// checkUnknownKeys reports every key the decoder left untouched.
func checkUnknownKeys(md *toml.MetaData) error {
	var errs []error

	for _, key := range md.Undecoded() {
		if err := unknownKeyError(key); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func unknownKeyError(key toml.Key) error {
	switch {
	case len(key) == 0:
		return nil
	case len(key) == 1:
		return withHint(fmt.Sprintf("unknown config key %q", key[0]), key[0], sectionNames())
	}

	keys, known := schema[key[0]]
	if !known {
		// Reported once, for the section itself.
		return nil
	}

	msg := fmt.Sprintf("unknown config key %q in [%s]", strings.Join(key[1:], "."), key[0])

	return withHint(msg, key[1], keys)
}

func withHint(msg, typo string, candidates []string) error {
	if s := closestMatch(typo, candidates); s != "" {
		return fmt.Errorf("%s, did you mean %q?", msg, s)
	}

	return errors.New(msg)
}

// closestMatch returns the candidate nearest to s, or "" when none is
// within suggestDistance. Ties go to the earlier candidate.
func closestMatch(s string, candidates []string) string {
	best, bestDist := "", suggestDistance+1

	for _, c := range candidates {
		if d := levenshtein(s, c); d < bestDist {
			best, bestDist = c, d
		}
	}

	return best
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)

	row := make([]int, len(rb)+1)
	for j := range row {
		row[j] = j
	}

	for i, ca := range ra {
		diag := row[0]
		row[0] = i + 1

		for j, cb := range rb {
			sub := diag
			if ca != cb {
				sub++
			}

			diag = row[j+1]
			row[j+1] = min(row[j+1]+1, row[j]+1, sub)
		}
	}

	return row[len(rb)]
}
