package tensor

// PadMode selects how Pad fills the border region.
type PadMode string

// Pad modes, matching the IR's mode attribute values.
const (
	PadConstant PadMode = "constant"
	PadReflect  PadMode = "reflect"
	PadEdge     PadMode = "edge"
)

// Backend is the operator set of the numeric runtime. It is the contract the
// translation layer invokes: every translation rule bottoms out in one or
// more of these calls.
//
// Kernels panic on shape or dtype misuse; the translation layer validates
// inputs and returns errors at its own boundary.
type Backend interface {
	// Element-wise binary operations with NumPy-style broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor
	Pow(a, b *RawTensor) *RawTensor

	// Matrix multiplication for 2-D tensors and stacked (equal leading
	// dimensions) higher-rank tensors.
	MatMul(a, b *RawTensor) *RawTensor

	// Element-wise operations with a scalar operand.
	AddScalar(x *RawTensor, scalar float64) *RawTensor
	MulScalar(x *RawTensor, scalar float64) *RawTensor

	// Element-wise unary math.
	Abs(x *RawTensor) *RawTensor
	Neg(x *RawTensor) *RawTensor
	Exp(x *RawTensor) *RawTensor
	Log(x *RawTensor) *RawTensor
	Sqrt(x *RawTensor) *RawTensor
	Reciprocal(x *RawTensor) *RawTensor

	// Activations.
	Relu(x *RawTensor) *RawTensor
	LeakyRelu(x *RawTensor, alpha float32) *RawTensor
	Elu(x *RawTensor, alpha float32) *RawTensor
	Selu(x *RawTensor, alpha, gamma float32) *RawTensor
	Sigmoid(x *RawTensor) *RawTensor
	Tanh(x *RawTensor) *RawTensor
	Softmax(x *RawTensor, axis int) *RawTensor
	LogSoftmax(x *RawTensor, axis int) *RawTensor

	// Reductions over a set of axes. An empty axes slice reduces over all
	// axes. keepDims retains reduced axes with size 1.
	ReduceSum(x *RawTensor, axes []int, keepDims bool) *RawTensor
	ReduceMean(x *RawTensor, axes []int, keepDims bool) *RawTensor
	ReduceMax(x *RawTensor, axes []int, keepDims bool) *RawTensor
	ReduceMin(x *RawTensor, axes []int, keepDims bool) *RawTensor
	ReduceProd(x *RawTensor, axes []int, keepDims bool) *RawTensor
	ReduceLogSumExp(x *RawTensor, axes []int, keepDims bool) *RawTensor

	// Random tensor generation. A nil seed draws from the backend's own
	// source; a non-nil seed makes the result deterministic.
	RandomNormal(shape Shape, dtype DataType, mean, stddev float32, seed *int64) *RawTensor
	RandomUniform(shape Shape, dtype DataType, minval, maxval float32, seed *int64) *RawTensor

	// Shape manipulation.
	Reshape(x *RawTensor, shape Shape) *RawTensor
	Transpose(x *RawTensor, perm []int) *RawTensor
	Squeeze(x *RawTensor, axes []int) *RawTensor
	Unsqueeze(x *RawTensor, axes []int) *RawTensor
	Flatten(x *RawTensor, axis int) *RawTensor
	Concat(tensors []*RawTensor, axis int) *RawTensor
	Split(x *RawTensor, axis int, sizes []int, numOutputs int) []*RawTensor
	Slice(x *RawTensor, starts, ends, axes, steps []int64) *RawTensor
	Gather(x, indices *RawTensor, axis int) *RawTensor
	Expand(x *RawTensor, shape Shape) *RawTensor
	Pad(x *RawTensor, pads []int, mode PadMode, value float32) *RawTensor

	// Selection and conversion.
	Where(cond, x, y *RawTensor) *RawTensor
	Cast(x *RawTensor, dtype DataType) *RawTensor

	// Metadata.
	Name() string
	Device() Device
}
