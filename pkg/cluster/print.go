// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package cluster

import (
	"bufio"
	"fmt"
	"io"
)

// Print writes the report: one block per group in order of creation.
// A block looks like:
//
//	=== group 1/2: 3 files
//	out/id:000001.btfull
//	out/id:000007.btfull
//	out/id:000009.btfull
//	  #0  parse_header at parse.c:31
//	  #1  main at main.c:12
//
// If oneByGroup is set (or the set keeps one file per group), only the first
// file of each group is listed.
func (set *Set) Print(w io.Writer, oneByGroup bool) error {
	groups := set.Groups()
	buf := bufio.NewWriter(w)
	for i, group := range groups {
		files := "files"
		if group.Count == 1 {
			files = "file"
		}
		fmt.Fprintf(buf, "=== group %v/%v: %v %v\n", i+1, len(groups), group.Count, files)
		members := group.Files
		if oneByGroup && len(members) > 1 {
			members = members[:1]
		}
		for _, file := range members {
			fmt.Fprintf(buf, "%v\n", file)
		}
		for j, key := range group.Signature {
			fmt.Fprintf(buf, "  #%-3v%v\n", j, key)
		}
		buf.WriteString("\n")
	}
	return buf.Flush()
}
