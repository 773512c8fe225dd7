// Copyright (c) 2024 LevelGraph Go Contributors
//
// Permission is hereby granted, free of charge, to any person
// obtaining a copy of this software and associated documentation
// files (the "Software"), to deal in the Software without
// restriction, including without limitation the rights to use,
// copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the
// Software is furnished to do so, subject to the following
// conditions:
//
// The above copyright notice and this permission notice shall be
// included in all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
// EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES
// OF MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND
// NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT
// HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY,
// WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING
// FROM, OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR
// OTHER DEALINGS IN THE SOFTWARE.

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	hannoygo "github.com/benbenbenbenbenben/hannoygo"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print an index's item count, layer shape, and pending-build status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ix, err := hannoygo.Open(storePath, indexID)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer ix.Close()

		st, err := ix.Stats()
		if err != nil {
			return fmt.Errorf("collecting stats for index %d: %w", indexID, err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "index:      %d\nitems:      %d\nneed build: %t\n", indexID, st.Items, st.NeedBuild)
		fmt.Fprintf(out, "max level:  %d\nentry pts:  %d\navg degree: %.1f\n", st.MaxLevel, st.EntryPoints, st.AvgOutDegree)
		for level, n := range st.LayerNodes {
			fmt.Fprintf(out, "layer %d:    %d nodes\n", level, n)
		}
		return nil
	},
}
