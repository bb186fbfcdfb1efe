package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"

	"penumbra/internal/logger"
	"penumbra/pkg/config"
	"penumbra/pkg/engine"
)

func init() {
	// GLFW requires the program to be running on the main thread
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	seed := flag.Int64("seed", 1, "Terrain generation seed")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		// Missing config falls back to defaults; only report it.
		log.Printf("%v", err)
	}

	logg, err := logger.New(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logg.Close()
	logg.Info("Starting penumbra depth viewer...")

	eng, err := engine.NewEngine(cfg, logg)
	if err != nil {
		logg.Fatalf("Failed to initialize engine: %v", err)
	}

	logg.Info("Building occluder terrain...")
	polys, viewPoints := sampleGeometry(cfg.Terrain.SizeX, cfg.Terrain.SizeY, cfg.Terrain.Depth, *seed)
	if err := eng.SetGeometry(polys, viewPoints); err != nil {
		logg.Fatalf("Failed to build terrain: %v", err)
	}

	if err := glfw.Init(); err != nil {
		logg.Fatalf("Failed to initialize GLFW: %v", err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)

	var monitor *glfw.Monitor
	if cfg.Graphics.Fullscreen {
		monitor = glfw.GetPrimaryMonitor()
	}
	window, err := glfw.CreateWindow(cfg.Graphics.Width, cfg.Graphics.Height,
		"Penumbra - Depth Viewer", monitor, nil)
	if err != nil {
		logg.Fatalf("Failed to create GLFW window: %v", err)
	}
	window.MakeContextCurrent()
	if cfg.Graphics.VSync {
		glfw.SwapInterval(1)
	}

	viewer, err := NewDepthViewer()
	if err != nil {
		logg.Fatalf("Failed to initialize viewer: %v", err)
	}
	defer viewer.Close()

	sizeX := float32(cfg.Terrain.SizeX)
	sizeY := float32(cfg.Terrain.SizeY)
	depth := float32(cfg.Terrain.Depth)
	center := mgl32.Vec3{sizeX / 2, sizeY / 2, depth * 0.3}

	logg.Info("Entering render loop (Esc to exit)")
	start := glfw.GetTime()
	frames := 0
	for !window.ShouldClose() {
		if window.GetKey(glfw.KeyEscape) == glfw.Press {
			window.SetShouldClose(true)
		}

		t := glfw.GetTime() - start
		camera := orbitCamera(center, sizeX*0.45, depth*0.6, float32(t)*0.3,
			float32(cfg.Graphics.Width)/float32(cfg.Graphics.Height))

		if err := eng.RenderDepth(camera); err != nil {
			logg.Errorf("Depth pass failed: %v", err)
		}

		winWidth, winHeight := window.GetFramebufferSize()
		viewer.Draw(eng.DepthImage(), winWidth, winHeight)

		window.SwapBuffers()
		glfw.PollEvents()

		frames++
		if frames%120 == 0 {
			elapsed := glfw.GetTime() - start
			window.SetTitle(fmt.Sprintf("Penumbra - Depth Viewer (%.1f fps)",
				float64(frames)/elapsed))
		}
	}

	logg.Info("Shutting down")
}

// orbitCamera builds the combined projection-view matrix for a camera
// circling the terrain center.
func orbitCamera(center mgl32.Vec3, radius, height, angle, aspect float32) mgl32.Mat4 {
	eye := mgl32.Vec3{
		center.X() + radius*float32(math.Cos(float64(angle))),
		center.Y() + radius*float32(math.Sin(float64(angle))),
		center.Z() + height,
	}
	view := mgl32.LookAtV(eye, center, mgl32.Vec3{0, 0, 1})
	proj := infiniteReversePerspective(mgl32.DegToRad(60), aspect, 1)
	return proj.Mul4(view)
}

// infiniteReversePerspective returns a perspective projection whose
// depth z/w is near/distance: 1 at the near plane, falling towards 0
// at infinity. The depth pipeline expects this reversed convention.
func infiniteReversePerspective(fovy, aspect, near float32) mgl32.Mat4 {
	f := 1 / float32(math.Tan(float64(fovy)/2))
	return mgl32.Mat4FromRows(
		mgl32.Vec4{f / aspect, 0, 0, 0},
		mgl32.Vec4{0, f, 0, 0},
		mgl32.Vec4{0, 0, 0, near},
		mgl32.Vec4{0, 0, -1, 0},
	)
}
