package strale

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f32(b []byte, i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
}

func TestSphereScalarLayout(t *testing.T) {
	s := Sphere{
		Position: mgl32.Vec3{1, 2, 3},
		Radius:   4,
		Material: 5,
		Albedo:   mgl32.Vec3{0.25, 0.5, 0.75},
	}
	b := s.AppendBytes(nil)
	require.Len(t, b, SphereSize)
	for i, want := range []float32{1, 2, 3, 4, 5, 0.25, 0.5, 0.75} {
		assert.Equal(t, want, f32(b, i), "float %d", i)
	}
}

func TestVertexBytes(t *testing.T) {
	b := VertexBytes(SceneVertices)
	require.Len(t, b, len(SceneVertices)*VertexSize)
	// Third vertex, y component.
	assert.Equal(t, float32(-1), f32(b, 9))
	assert.Equal(t, float32(1), f32(b, 11))
}

func TestPushConstantBytes(t *testing.T) {
	b := PushConstant{Time: 2.5, NumSpheres: 7}.Bytes()
	require.Len(t, b, PushConstantSize)
	assert.Equal(t, float32(2.5), f32(b, 0))
	assert.EqualValues(t, 7, binary.LittleEndian.Uint32(b[4:]))
}

func TestSceneSpheresFitDefaultCapacity(t *testing.T) {
	assert.LessOrEqual(t, uint64(len(SphereBytes(SceneSpheres))), DefaultConfig().Scene.SphereCapacity)
	assert.Len(t, SceneSpheres, 4)
}

func TestSpirvWords(t *testing.T) {
	words, err := spirvWords(spirv(9))
	require.NoError(t, err)
	assert.Equal(t, []uint32{spirvMagic, 0x00010600, 0, 9, 0}, words)

	_, err = spirvWords(spirv(9)[:18])
	assert.ErrorIs(t, err, ErrShaderModule)

	bad := spirv(9)
	bad[0] = 0
	_, err = spirvWords(bad)
	assert.ErrorIs(t, err, ErrShaderModule)
}

func TestLoadShaderCode(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, TriangleVertexShader), spirv(1), 0o644))

	_, err := LoadShaderCode(dir)
	assert.Error(t, err, "fragment shader missing")

	require.NoError(t, os.WriteFile(filepath.Join(dir, TriangleFragmentShader), spirv(2), 0o644))
	code, err := LoadShaderCode(dir)
	require.NoError(t, err)
	assert.Equal(t, testShaders(), code)
}
