// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package settings

import (
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

// LoadOverrides reads a YAML document mapping setting keys to values and
// applies each of them to sv. Scalars of any YAML type are accepted; they are
// decoded with the setting's own parser:
//
//	sql.optimizer.heuristic.max_iterations: 50
//	sql.optimizer.rules.disabled: MergeFilter,EliminateProject
func LoadOverrides(r io.Reader, sv *Values) error {
	var doc map[string]yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errors.Wrap(err, "parsing settings overrides")
	}
	keys := maps.Keys(doc)
	slices.Sort(keys)
	for _, k := range keys {
		n := doc[k]
		var val string
		switch n.Kind {
		case yaml.ScalarNode:
			val = n.Value
		case yaml.SequenceNode:
			// A list is joined with commas, the encoding used by list-valued
			// string settings.
			var items []string
			if err := n.Decode(&items); err != nil {
				return errors.Wrapf(err, "setting %s", k)
			}
			val = strings.Join(items, ",")
		default:
			return errors.Newf("setting %s: expected a scalar or a list, found line %d", k, n.Line)
		}
		if err := sv.Set(k, val); err != nil {
			return err
		}
	}
	return nil
}
