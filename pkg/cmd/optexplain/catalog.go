// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package main

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/scalar"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/testutils/testcat"
	"gopkg.in/yaml.v3"
)

// catalogFile is the YAML description of the tables queries may reference:
//
//	tables:
//	- name: a
//	  columns: [x, y]
//	  row-count: 1000
//	  rows:
//	  - 1, 10
//	  - 2, NULL
type catalogFile struct {
	Tables []struct {
		Name     string   `yaml:"name"`
		Columns  []string `yaml:"columns"`
		RowCount *int64   `yaml:"row-count"`
		Rows     []string `yaml:"rows"`
	} `yaml:"tables"`
}

// loadCatalog builds a catalog from a YAML description. A missing row count
// defaults to the number of rows.
func loadCatalog(r io.Reader) (*testcat.Catalog, error) {
	var f catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "parsing catalog")
	}
	catalog := testcat.New()
	for _, t := range f.Tables {
		rows := make([][]scalar.Datum, 0, len(t.Rows))
		for i, line := range t.Rows {
			row, err := testcat.ParseRow(line)
			if err != nil {
				return nil, errors.Wrapf(err, "table %s, row %d", t.Name, i+1)
			}
			rows = append(rows, row)
		}
		rowCount := int64(-1)
		if t.RowCount != nil {
			rowCount = *t.RowCount
		}
		if _, err := catalog.CreateTable(t.Name, t.Columns, rows, rowCount); err != nil {
			return nil, err
		}
	}
	return catalog, nil
}
