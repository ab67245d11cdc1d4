// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// optexplain optimizes plans written in the exprgen syntax and prints the
// result. For example:
//
//	optexplain opt --catalog tables.yaml query.opt
//	optexplain opt --set sql.optimizer.rules.disabled=MergeFilter query.opt
//	optexplain settings
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Cobra has already printed the error message.
		os.Exit(1)
	}
}
