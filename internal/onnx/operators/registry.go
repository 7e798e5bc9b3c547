package operators

import (
	"fmt"
	"sort"

	"github.com/trellis-ml/trellis/internal/tensor"
)

// OpHandler translates one IR node into runtime operator invocations and
// returns the resulting output tensors, in the order of node.Outputs.
type OpHandler func(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error)

// Context carries per-model execution state into handlers.
type Context struct {
	Backend tensor.Backend

	// Opset is the model's default-domain operator set version. Handlers
	// use it to resolve attribute-vs-input schema changes.
	Opset int64
}

// Registry maps IR operator names to translation handlers.
type Registry struct {
	handlers map[string]OpHandler
}

// NewRegistry creates a registry with all built-in operators.
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[string]OpHandler)}

	r.registerMathOps()
	r.registerActivations()
	r.registerReductions()
	r.registerRandomOps()
	r.registerShapeOps()
	r.registerUtilityOps()

	return r
}

// Register adds or replaces a handler for an operator type.
func (r *Registry) Register(opType string, handler OpHandler) {
	r.handlers[opType] = handler
}

// Get returns the handler for an operator type.
func (r *Registry) Get(opType string) (OpHandler, bool) {
	h, ok := r.handlers[opType]
	return h, ok
}

// Execute runs the handler for node with the given inputs.
func (r *Registry) Execute(ctx *Context, node *Node, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	handler, ok := r.handlers[node.OpType]
	if !ok {
		return nil, fmt.Errorf("unsupported operator: %s", node.OpType)
	}
	return handler(ctx, node, inputs)
}

// SupportedOps returns the sorted list of registered operator types.
func (r *Registry) SupportedOps() []string {
	ops := make([]string, 0, len(r.handlers))
	for op := range r.handlers {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}
