// Package params defines the shared constants of the proving pipeline: the
// curve ladder of the recursion and the identifiers and versions of every
// fixed circuit shape.
package params

import (
	"github.com/consensys/gnark-crypto/ecc"
)

// Curves of the recursion ladder. Base segment proofs live on BLS12-377,
// whose pairing is verified natively inside BW6-761 circuits; every
// recursive and shrink pass stays on BW6-761; the wrap circuit moves to
// BN254 by verifying the BW6-761 shrink proof with emulated arithmetic.
const (
	SegmentCurve   = ecc.BLS12_377
	RecursionCurve = ecc.BW6_761
	WrapCurve      = ecc.BN254
)

// Circuit shape identifiers. These name the fixed verifier shapes of the
// pipeline and key the build directory layout; they never change meaning
// across versions.
const (
	ShapeSegment       = "segment"
	ShapeRecursionLeaf = "recursion-leaf"
	ShapeRecursionNode = "recursion-node"
	ShapeRecursionMix  = "recursion-mixed"
	ShapeShrink        = "shrink"
	ShapeWrapGroth16   = "wrap-groth16"
	ShapeWrapPlonk     = "wrap-plonk"
)

// CircuitsVersion tags the current generation of every circuit shape.
// Bumping it makes the artifact builder emit a fresh artifact tree while
// keeping the previous one retrievable, so in-flight proofs started against
// the old version remain verifiable.
const CircuitsVersion = "v1"

// MaxSegmentSteps is the number of state transition steps committed per
// segment by the reference segment circuit.
const MaxSegmentSteps = 256

// PipelineShapes lists every shape a full proving run needs, ending with the
// given wrap shape.
func PipelineShapes(wrapShape string) []string {
	return []string{
		ShapeSegment,
		ShapeRecursionLeaf,
		ShapeRecursionNode,
		ShapeRecursionMix,
		ShapeShrink,
		wrapShape,
	}
}

// CurveForShape returns the curve a circuit shape is compiled over.
func CurveForShape(shape string) ecc.ID {
	switch shape {
	case ShapeSegment:
		return SegmentCurve
	case ShapeRecursionLeaf, ShapeRecursionNode, ShapeRecursionMix, ShapeShrink:
		return RecursionCurve
	case ShapeWrapGroth16, ShapeWrapPlonk:
		return WrapCurve
	default:
		return ecc.UNKNOWN
	}
}
