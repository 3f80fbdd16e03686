package strale

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// Byte layouts of everything uploaded to the GPU. Storage buffers use
// scalar block layout, so fields are packed at 4-byte alignment in
// declaration order, little endian.

// Vertex is a clip-space position.
type Vertex struct {
	Position mgl32.Vec4
}

// Sphere matches the shader's sphere record.
//
//	offset 0  position  vec3
//	offset 12 radius    float
//	offset 16 material  float
//	offset 20 albedo    vec3
type Sphere struct {
	Position mgl32.Vec3
	Radius   float32
	Material float32
	Albedo   mgl32.Vec3
}

// PushConstant is the fragment stage push constant block.
type PushConstant struct {
	Time       float32
	NumSpheres uint32
}

const (
	VertexSize       = 16
	SphereSize       = 32
	PushConstantSize = 8
)

// Compile-time size checks: either array length goes negative on mismatch.
var (
	_ [VertexSize - unsafe.Sizeof(Vertex{})]struct{}
	_ [unsafe.Sizeof(Vertex{}) - VertexSize]struct{}
	_ [SphereSize - unsafe.Sizeof(Sphere{})]struct{}
	_ [unsafe.Sizeof(Sphere{}) - SphereSize]struct{}
	_ [PushConstantSize - unsafe.Sizeof(PushConstant{})]struct{}
	_ [unsafe.Sizeof(PushConstant{}) - PushConstantSize]struct{}
)

func appendFloat(b []byte, f float32) []byte {
	return binary.LittleEndian.AppendUint32(b, math.Float32bits(f))
}

func appendVec(b []byte, v ...float32) []byte {
	for _, f := range v {
		b = appendFloat(b, f)
	}
	return b
}

func (v Vertex) AppendBytes(b []byte) []byte {
	return appendVec(b, v.Position[:]...)
}

func (s Sphere) AppendBytes(b []byte) []byte {
	b = appendVec(b, s.Position[:]...)
	b = appendFloat(b, s.Radius)
	b = appendFloat(b, s.Material)
	return appendVec(b, s.Albedo[:]...)
}

func (p PushConstant) Bytes() []byte {
	b := make([]byte, 0, PushConstantSize)
	b = appendFloat(b, p.Time)
	return binary.LittleEndian.AppendUint32(b, p.NumSpheres)
}

func VertexBytes(vs []Vertex) []byte {
	b := make([]byte, 0, len(vs)*VertexSize)
	for _, v := range vs {
		b = v.AppendBytes(b)
	}
	return b
}

func SphereBytes(ss []Sphere) []byte {
	b := make([]byte, 0, len(ss)*SphereSize)
	for _, s := range ss {
		b = s.AppendBytes(b)
	}
	return b
}

// Full-screen triangle covering the viewport.
var SceneVertices = []Vertex{
	{Position: mgl32.Vec4{-1, 1, 0, 1}},
	{Position: mgl32.Vec4{1, 1, 0, 1}},
	{Position: mgl32.Vec4{0, -1, 0, 1}},
}

// SceneSpheres is a ground sphere with three small ones resting on it.
var SceneSpheres = []Sphere{
	{Position: mgl32.Vec3{0, -1000, 0}, Radius: 1000, Albedo: mgl32.Vec3{0.5, 0.5, 0.5}},
	{Position: mgl32.Vec3{2, 0.2, 0}, Radius: 0.2, Albedo: mgl32.Vec3{0.5, 0.5, 0.5}},
	{Position: mgl32.Vec3{0, 1.2, 1}, Radius: 1, Albedo: mgl32.Vec3{0.5, 0.5, 0.5}},
	{Position: mgl32.Vec3{1, 0.2, 1}, Radius: 0.2, Albedo: mgl32.Vec3{0.5, 0.5, 0.5}},
}
