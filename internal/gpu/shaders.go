//go:build !nogpu

package gpu

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// Embedded WGSL sources for the render programs.
//
//go:embed shaders/cell.wgsl
var cellShaderSource string

//go:embed shaders/border.wgsl
var borderShaderSource string

//go:embed shaders/cursor.wgsl
var cursorShaderSource string

//go:embed shaders/graphics.wgsl
var graphicsShaderSource string

// compileShader compiles WGSL to SPIR-V words and creates the HAL
// shader module. Compilation errors are returned to the caller; a
// broken shader must not take the process down.
func compileShader(device hal.Device, label, source string) (hal.ShaderModule, error) {
	if source == "" {
		return nil, fmt.Errorf("%s shader source is empty", label)
	}
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("compile %s shader: %w", label, err)
	}

	// SPIR-V is little-endian 32-bit words.
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}

	return device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: words},
	})
}
