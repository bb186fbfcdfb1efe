package main

import (
	"fmt"
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"

	"penumbra/pkg/cull"
)

const viewerVertexShaderSource = `
#version 410 core
layout (location = 0) in vec3 aPos;
layout (location = 1) in vec2 aTexCoord;

out vec2 TexCoord;

void main() {
    gl_Position = vec4(aPos, 1.0);
    TexCoord = aTexCoord;
}
`

const viewerFragmentShaderSource = `
#version 410 core
in vec2 TexCoord;
out vec4 FragColor;

uniform sampler2D depthImage;

void main() {
    // Depth is z/w with larger values nearer; tone-map it so close
    // occluders show bright and the far plane fades to black.
    float d = texture(depthImage, TexCoord).r;
    float c = 1.0 - exp(-d * 40.0);
    FragColor = vec4(vec3(c), 1.0);
}
`

// DepthViewer blits a depth image to the window as a grayscale
// fullscreen quad.
type DepthViewer struct {
	shaderProgram uint32
	quadVAO       uint32
	quadVBO       uint32
	depthTexture  uint32
	texSize       [2]int
}

// NewDepthViewer sets up the shader, quad and texture. An OpenGL
// context must be current.
func NewDepthViewer() (*DepthViewer, error) {
	v := &DepthViewer{}

	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %v", err)
	}
	gl.ClearColor(0.0, 0.0, 0.0, 1.0)

	var err error
	if v.shaderProgram, err = createShaderProgram(viewerVertexShaderSource, viewerFragmentShaderSource); err != nil {
		return nil, fmt.Errorf("failed to create viewer shader: %v", err)
	}

	v.setupQuad()

	gl.GenTextures(1, &v.depthTexture)
	gl.BindTexture(gl.TEXTURE_2D, v.depthTexture)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	return v, nil
}

// setupQuad creates the fullscreen quad
func (v *DepthViewer) setupQuad() {
	vertices := []float32{
		// Positions        // Texture coords
		-1.0, 1.0, 0.0, 0.0, 1.0,
		-1.0, -1.0, 0.0, 0.0, 0.0,
		1.0, -1.0, 0.0, 1.0, 0.0,

		-1.0, 1.0, 0.0, 0.0, 1.0,
		1.0, -1.0, 0.0, 1.0, 0.0,
		1.0, 1.0, 0.0, 1.0, 1.0,
	}

	gl.GenVertexArrays(1, &v.quadVAO)
	gl.GenBuffers(1, &v.quadVBO)

	gl.BindVertexArray(v.quadVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, v.quadVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*4, gl.Ptr(vertices), gl.STATIC_DRAW)

	// Position attribute
	gl.VertexAttribPointer(0, 3, gl.FLOAT, false, 5*4, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(0)

	// Texture coordinate attribute
	gl.VertexAttribPointer(1, 2, gl.FLOAT, false, 5*4, gl.PtrOffset(3*4))
	gl.EnableVertexAttribArray(1)

	gl.BindVertexArray(0)
}

// Draw uploads the depth image and draws it over the whole viewport.
func (v *DepthViewer) Draw(image *cull.DepthImage, winWidth, winHeight int) {
	gl.Viewport(0, 0, int32(winWidth), int32(winHeight))
	gl.Clear(gl.COLOR_BUFFER_BIT)

	if image == nil {
		return
	}

	size := image.Size()
	gl.BindTexture(gl.TEXTURE_2D, v.depthTexture)
	if size != v.texSize {
		gl.TexImage2D(gl.TEXTURE_2D, 0, gl.R32F, int32(size[0]), int32(size[1]),
			0, gl.RED, gl.FLOAT, nil)
		v.texSize = size
	}
	gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(size[0]), int32(size[1]),
		gl.RED, gl.FLOAT, gl.Ptr(image.Pixels()))

	gl.UseProgram(v.shaderProgram)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.Uniform1i(gl.GetUniformLocation(v.shaderProgram, gl.Str("depthImage\x00")), 0)

	gl.BindVertexArray(v.quadVAO)
	gl.DrawArrays(gl.TRIANGLES, 0, 6)
	gl.BindVertexArray(0)

	gl.BindTexture(gl.TEXTURE_2D, 0)
}

// Close releases OpenGL resources
func (v *DepthViewer) Close() {
	gl.DeleteProgram(v.shaderProgram)
	gl.DeleteVertexArrays(1, &v.quadVAO)
	gl.DeleteBuffers(1, &v.quadVBO)
	gl.DeleteTextures(1, &v.depthTexture)
}

// createShaderProgram compiles and links a shader program from source
func createShaderProgram(vertexSource, fragmentSource string) (uint32, error) {
	// Vertex shader
	vertexShader, err := compileShader(vertexSource, gl.VERTEX_SHADER)
	if err != nil {
		return 0, err
	}

	// Fragment shader
	fragmentShader, err := compileShader(fragmentSource, gl.FRAGMENT_SHADER)
	if err != nil {
		gl.DeleteShader(vertexShader)
		return 0, err
	}

	// Create program and attach shaders
	program := gl.CreateProgram()
	gl.AttachShader(program, vertexShader)
	gl.AttachShader(program, fragmentShader)
	gl.LinkProgram(program)

	// Check for linking errors
	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)

		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(log))

		gl.DeleteProgram(program)
		gl.DeleteShader(vertexShader)
		gl.DeleteShader(fragmentShader)

		return 0, fmt.Errorf("shader program linking failed: %v", log)
	}

	// Detach and delete shaders
	gl.DetachShader(program, vertexShader)
	gl.DetachShader(program, fragmentShader)
	gl.DeleteShader(vertexShader)
	gl.DeleteShader(fragmentShader)

	return program, nil
}

// compileShader compiles a shader from source
func compileShader(source string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)

	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	// Check for compilation errors
	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)

		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(log))

		gl.DeleteShader(shader)

		return 0, fmt.Errorf("shader compilation failed: %v", log)
	}

	return shader, nil
}
