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
	"context"
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"

	hannoygo "github.com/benbenbenbenbenben/hannoygo"
)

var (
	buildM              int
	buildM0             int
	buildEfConstruction int
	buildWorkers        int
	buildSeed           int64
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Rebuild the graph to reflect every pending add/delete",
	RunE: func(cmd *cobra.Command, args []string) error {
		dist, err := resolveDistance()
		if err != nil {
			return err
		}
		ix, err := hannoygo.Open(storePath, indexID, hannoygo.WithDimensions(dimensions), hannoygo.WithDistance(dist))
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer ix.Close()

		rng := rand.New(rand.NewSource(buildSeed))
		stats, err := ix.Build(context.Background(), rng,
			hannoygo.WithM(buildM),
			hannoygo.WithM0(buildM0),
			hannoygo.WithEfConstruction(buildEfConstruction),
			hannoygo.WithWorkers(buildWorkers),
		)
		if err != nil {
			return fmt.Errorf("building index %d: %w", indexID, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "build complete: %d inserted, %d deleted, %s elapsed\n",
			stats.ItemsInserted, stats.ItemsDeleted, stats.Duration)
		return nil
	},
}

func init() {
	buildCmd.Flags().IntVar(&buildM, "m", 16, "per-layer link target above layer 0")
	buildCmd.Flags().IntVar(&buildM0, "m0", 32, "layer-0 link target")
	buildCmd.Flags().IntVar(&buildEfConstruction, "ef-construction", 100, "construction-time beam width")
	buildCmd.Flags().IntVar(&buildWorkers, "workers", 1, "concurrent insertion workers (1 is fully deterministic)")
	buildCmd.Flags().Int64Var(&buildSeed, "seed", 42, "seed for level-sampling randomness")
}
