package stage

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// BlendMode selects how a batch's fragments combine with the target.
// Vertex colors are premultiplied, so every mode is expressed in
// premultiplied form.
type BlendMode uint8

const (
	// BlendNormal is source-over compositing.
	BlendNormal BlendMode = iota
	// BlendAdditive adds source to destination.
	BlendAdditive
	// BlendMultiply multiplies source and destination.
	BlendMultiply
	// BlendReplace overwrites the destination.
	BlendReplace
)

// State returns the GPU blend state for the mode.
func (b BlendMode) State() gputypes.BlendState {
	switch b {
	case BlendAdditive:
		c := gputypes.BlendComponent{
			SrcFactor: gputypes.BlendFactorOne,
			DstFactor: gputypes.BlendFactorOne,
			Operation: gputypes.BlendOperationAdd,
		}
		return gputypes.BlendState{Color: c, Alpha: c}
	case BlendMultiply:
		return gputypes.BlendState{
			Color: gputypes.BlendComponent{
				SrcFactor: gputypes.BlendFactorDst,
				DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
				Operation: gputypes.BlendOperationAdd,
			},
			Alpha: gputypes.BlendComponent{
				SrcFactor: gputypes.BlendFactorOne,
				DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
				Operation: gputypes.BlendOperationAdd,
			},
		}
	case BlendReplace:
		return gputypes.BlendStateReplace()
	default:
		return gputypes.BlendStatePremultiplied()
	}
}

// String returns the mode name.
func (b BlendMode) String() string {
	switch b {
	case BlendNormal:
		return "normal"
	case BlendAdditive:
		return "additive"
	case BlendMultiply:
		return "multiply"
	case BlendReplace:
		return "replace"
	default:
		return fmt.Sprintf("BlendMode(%d)", uint8(b))
	}
}
