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

// Package cli implements the hnswctl command tree.
package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/benbenbenbenbenben/hannoygo/distance"
)

var (
	storePath  string
	indexID    uint16
	dimensions int
	distName   string
)

var rootCmd = &cobra.Command{
	Use:   "hnswctl",
	Short: "Inspect and drive a hannoygo HNSW index from the command line",
	Long: `hnswctl is a scripting and inspection tool over one hannoygo store
file: add vectors, trigger a build, run a search, or print an index's
current stats.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "path to the hannoygo store file (required)")
	rootCmd.PersistentFlags().Uint16Var(&indexID, "index", 0, "16-bit index id within the store")
	rootCmd.PersistentFlags().IntVar(&dimensions, "dimensions", 0, "vector dimensionality; build requires it to match an existing index")
	rootCmd.PersistentFlags().StringVar(&distName, "distance", "cosine", "distance variant (build requires it to match an existing index): cosine, euclidean, manhattan, hamming, binary_cosine, binary_hamming")
	_ = rootCmd.MarkPersistentFlagRequired("store")

	rootCmd.AddCommand(addCmd, buildCmd, searchCmd, statsCmd)
}

// Execute runs the command tree, printing any error to stderr.
func Execute() error {
	return rootCmd.Execute()
}

func resolveDistance() (distance.Distance, error) {
	d, ok := distance.Lookup(distName)
	if !ok {
		return nil, fmt.Errorf("unknown distance %q", distName)
	}
	return d, nil
}

// parseVector parses a comma-separated list of floats, e.g. "1,2,3".
func parseVector(s string) ([]float32, error) {
	parts := strings.Split(s, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("parsing vector component %d (%q): %w", i, p, err)
		}
		out[i] = float32(v)
	}
	return out, nil
}
