package strale

import (
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/andewx/strale/driver"
	"github.com/pkg/errors"
)

//go:generate glslc --target-env=vulkan1.3 -o assets/shaders/triangle.vert.spv assets/shaders/triangle.vert
//go:generate glslc --target-env=vulkan1.3 -o assets/shaders/triangle.frag.spv assets/shaders/triangle.frag

const spirvMagic = 0x07230203

const (
	TriangleVertexShader   = "triangle.vert.spv"
	TriangleFragmentShader = "triangle.frag.spv"
)

// ShaderCode is a precompiled vertex and fragment SPIR-V pair.
type ShaderCode struct {
	Vertex   []byte
	Fragment []byte
}

// LoadShaderCode reads the triangle shaders from dir.
func LoadShaderCode(dir string) (ShaderCode, error) {
	vert, err := os.ReadFile(filepath.Join(dir, TriangleVertexShader))
	if err != nil {
		return ShaderCode{}, errors.Wrap(err, "read vertex shader")
	}
	frag, err := os.ReadFile(filepath.Join(dir, TriangleFragmentShader))
	if err != nil {
		return ShaderCode{}, errors.Wrap(err, "read fragment shader")
	}
	return ShaderCode{Vertex: vert, Fragment: frag}, nil
}

// spirvWords checks the SPIR-V header and converts the little-endian byte
// stream to words.
func spirvWords(code []byte) ([]uint32, error) {
	if len(code) < 20 || len(code)%4 != 0 {
		return nil, errors.Wrapf(ErrShaderModule, "SPIR-V length %d is not a whole number of words", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	if words[0] != spirvMagic {
		return nil, errors.Wrapf(ErrShaderModule, "bad SPIR-V magic %#08x", words[0])
	}
	return words, nil
}

func LoadShaderModule(dev *Device, code []byte) (driver.ShaderModule, error) {
	words, err := spirvWords(code)
	if err != nil {
		return 0, err
	}
	m, err := dev.Raw.CreateShaderModule(words)
	if err != nil {
		return 0, errors.Wrapf(ErrShaderModule, "%v", err)
	}
	return m, nil
}
