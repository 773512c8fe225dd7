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
	addID     uint32
	addVector string
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or overwrite one item's vector",
	RunE: func(cmd *cobra.Command, args []string) error {
		vec, err := parseVector(addVector)
		if err != nil {
			return err
		}
		dist, err := resolveDistance()
		if err != nil {
			return err
		}
		dims := dimensions
		if dims == 0 {
			dims = len(vec)
		}

		ix, err := hannoygo.Open(storePath, indexID, hannoygo.WithDimensions(dims), hannoygo.WithDistance(dist))
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer ix.Close()

		if err := ix.AddItem(addID, vec); err != nil {
			return fmt.Errorf("adding item %d: %w", addID, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "added item %d (%d dims) to index %d\n", addID, len(vec), indexID)
		return nil
	},
}

func init() {
	addCmd.Flags().Uint32Var(&addID, "id", 0, "item id (required)")
	addCmd.Flags().StringVar(&addVector, "vector", "", "comma-separated vector components, e.g. \"1,2,3\" (required)")
	_ = addCmd.MarkFlagRequired("id")
	_ = addCmd.MarkFlagRequired("vector")
}
