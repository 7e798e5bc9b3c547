// Package main provides the trellis CLI for inspecting and running ONNX
// models.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/trellis-ml/trellis/onnx"
)

const version = "v0.1.0-dev"

var rootCmd = &cobra.Command{
	Use:   "trellis",
	Short: "Run ONNX models on the Trellis runtime",
	Long: `Trellis loads ONNX models and runs them on a pure Go CPU backend.

Available commands:
  info    - Summarize a model file without loading its weights
  ops     - List the supported operators
  run     - Run inference with inputs from a YAML file
  version - Show version`,
}

var infoCmd = &cobra.Command{
	Use:   "info <model.onnx>",
	Short: "Summarize a model file",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

var opsCmd = &cobra.Command{
	Use:   "ops",
	Short: "List the supported operators",
	Run: func(_ *cobra.Command, _ []string) {
		for _, op := range onnx.ListSupportedOps() {
			fmt.Println(op)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("trellis %s\n", version)
	},
}

func runInfo(_ *cobra.Command, args []string) error {
	info, err := onnx.GetModelInfo(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("producer: %s %s\n", info.ProducerName, info.ProducerVersion)
	fmt.Printf("ir version: %d\n", info.IRVersion)
	fmt.Printf("opset: %d\n", info.OpsetVersion)
	fmt.Printf("nodes: %d\n", info.NodeCount)
	fmt.Printf("weights: %d\n", info.WeightCount)
	fmt.Printf("inputs: %v\n", info.InputNames)
	fmt.Printf("outputs: %v\n", info.OutputNames)
	if len(info.UnsupportedOps) > 0 {
		fmt.Printf("unsupported operators: %v\n", info.UnsupportedOps)
	}
	return nil
}

func main() {
	rootCmd.AddCommand(infoCmd, opsCmd, runCmd, versionCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
