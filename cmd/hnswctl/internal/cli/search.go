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

var (
	searchVector   string
	searchCount    int
	searchEfSearch int
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Find the nearest neighbors of a query vector",
	RunE: func(cmd *cobra.Command, args []string) error {
		vec, err := parseVector(searchVector)
		if err != nil {
			return err
		}
		dist, err := resolveDistance()
		if err != nil {
			return err
		}
		ix, err := hannoygo.Open(storePath, indexID, hannoygo.WithDimensions(len(vec)), hannoygo.WithDistance(dist))
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer ix.Close()

		results, err := ix.Search(vec, hannoygo.WithCount(searchCount), hannoygo.WithEfSearch(searchEfSearch))
		if err != nil {
			return fmt.Errorf("searching index %d: %w", indexID, err)
		}
		for _, r := range results {
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%f\n", r.ID, r.Distance)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchVector, "vector", "", "comma-separated query vector components (required)")
	searchCmd.Flags().IntVar(&searchCount, "count", 10, "number of nearest neighbors to return")
	searchCmd.Flags().IntVar(&searchEfSearch, "ef-search", 0, "layer-0 beam width (defaults to count)")
	_ = searchCmd.MarkFlagRequired("vector")
}
