// Copyright 2020 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package tool

import (
	"flag"
	"fmt"
	"strings"
)

// StringsFlag collects all values of a flag that may be passed several times
// (e.g. -file=a -file=b). Comma-separated values are not split,
// file names may contain commas.
type StringsFlag []string

func (f *StringsFlag) String() string {
	return fmt.Sprint(*f)
}

func (f *StringsFlag) Set(value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("empty value")
	}
	*f = append(*f, value)
	return nil
}

// SetFlags returns names of the flags that were explicitly set on the command line.
func SetFlags(set *flag.FlagSet) map[string]bool {
	res := make(map[string]bool)
	set.Visit(func(f *flag.Flag) {
		res[f.Name] = true
	})
	return res
}
