package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/trellis-ml/trellis/backend/cpu"
	"github.com/trellis-ml/trellis/onnx"
	"github.com/trellis-ml/trellis/tensor"
)

var runStrict bool

var runCmd = &cobra.Command{
	Use:   "run <model.onnx> <inputs.yaml>",
	Short: "Run inference with inputs from a YAML file",
	Long: `Run inference on a model. Inputs come from a YAML file mapping each
input name to a tensor:

  x:
    dtype: float32
    shape: [1, 4]
    data: [0.5, -1.0, 2.0, 3.5]`,
	Args: cobra.ExactArgs(2),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runStrict, "strict", false, "fail on unsupported operators at load time")
}

// inputSpec is one tensor in the YAML inputs file.
type inputSpec struct {
	DType string    `yaml:"dtype"`
	Shape []int     `yaml:"shape"`
	Data  []float64 `yaml:"data"`
}

func runRun(_ *cobra.Command, args []string) error {
	modelPath, inputsPath := args[0], args[1]

	raw, err := os.ReadFile(inputsPath)
	if err != nil {
		return err
	}
	var specs map[string]inputSpec
	if err := yaml.Unmarshal(raw, &specs); err != nil {
		return fmt.Errorf("parse %s: %w", inputsPath, err)
	}

	inputs := make(map[string]*tensor.RawTensor, len(specs))
	for name, spec := range specs {
		t, err := tensorFromSpec(spec)
		if err != nil {
			return fmt.Errorf("input %s: %w", name, err)
		}
		inputs[name] = t
	}

	backend := cpu.New()
	model, err := onnx.Load(modelPath, backend, onnx.LoadOptions{StrictMode: runStrict})
	if err != nil {
		return err
	}

	outputs, err := model.ForwardNamed(inputs)
	if err != nil {
		return err
	}
	for _, name := range model.OutputNames() {
		printTensor(name, outputs[name])
	}
	return nil
}

func tensorFromSpec(spec inputSpec) (*tensor.RawTensor, error) {
	dtype, err := parseDType(spec.DType)
	if err != nil {
		return nil, err
	}
	shape := tensor.Shape(spec.Shape)
	if len(spec.Data) != shape.NumElements() {
		return nil, fmt.Errorf("data has %d elements, shape wants %d", len(spec.Data), shape.NumElements())
	}

	switch dtype {
	case tensor.Float32:
		data := make([]float32, len(spec.Data))
		for i, v := range spec.Data {
			data[i] = float32(v)
		}
		return tensor.FromSlice(data, shape, tensor.CPU)
	case tensor.Float64:
		return tensor.FromSlice(spec.Data, shape, tensor.CPU)
	case tensor.Int32:
		data := make([]int32, len(spec.Data))
		for i, v := range spec.Data {
			data[i] = int32(v)
		}
		return tensor.FromSlice(data, shape, tensor.CPU)
	case tensor.Int64:
		data := make([]int64, len(spec.Data))
		for i, v := range spec.Data {
			data[i] = int64(v)
		}
		return tensor.FromSlice(data, shape, tensor.CPU)
	default:
		return nil, fmt.Errorf("unsupported input dtype %s", dtype)
	}
}

func parseDType(name string) (tensor.DataType, error) {
	switch strings.ToLower(name) {
	case "", "float32", "f32":
		return tensor.Float32, nil
	case "float64", "f64":
		return tensor.Float64, nil
	case "int32", "i32":
		return tensor.Int32, nil
	case "int64", "i64":
		return tensor.Int64, nil
	default:
		return 0, fmt.Errorf("unknown dtype %q", name)
	}
}

func printTensor(name string, t *tensor.RawTensor) {
	fmt.Printf("%s: %s %v\n", name, t.DType(), t.Shape())
	switch t.DType() {
	case tensor.Float32:
		fmt.Printf("  %v\n", t.AsFloat32())
	case tensor.Float64:
		fmt.Printf("  %v\n", t.AsFloat64())
	case tensor.Int32:
		fmt.Printf("  %v\n", t.AsInt32())
	case tensor.Int64:
		fmt.Printf("  %v\n", t.AsInt64())
	case tensor.Bool:
		fmt.Printf("  %v\n", t.AsBool())
	default:
		fmt.Printf("  %d bytes\n", t.ByteSize())
	}
}
