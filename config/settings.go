// Package config loads the viewer settings file.
package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultFilename is the settings file looked up next to the working directory.
const DefaultFilename = "meshview.yml"

type Settings struct {
	Window WindowSettings `yaml:"window"`
	Assets AssetSettings  `yaml:"assets"`
	Camera CameraSettings `yaml:"camera"`
	Render RenderSettings `yaml:"render"`
	Server ServerSettings `yaml:"server"`
	Log    LogSettings    `yaml:"log"`
}

type WindowSettings struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
	VSync  bool   `yaml:"vsync"`
}

type AssetSettings struct {
	Mesh string `yaml:"mesh"`
	// MaterialLib overrides the mtllib named by the mesh when set.
	MaterialLib string `yaml:"material_lib"`
	TextureDir  string `yaml:"texture_dir"`
	// Empty shader paths select the built-in sources.
	VertexShader   string `yaml:"vertex_shader"`
	FragmentShader string `yaml:"fragment_shader"`
}

type CameraSettings struct {
	FOV             float32    `yaml:"fov"` // degrees
	Near            float32    `yaml:"near"`
	Far             float32    `yaml:"far"`
	MoveStep        float32    `yaml:"move_step"`        // units per frame
	LookSensitivity float32    `yaml:"look_sensitivity"` // degrees per pixel
	Position        [3]float32 `yaml:"position"`
}

type RenderSettings struct {
	Wireframe   bool       `yaml:"wireframe"`
	TextureSlot uint32     `yaml:"texture_slot"`
	ClearColor  [4]float32 `yaml:"clear_color"`
	ModelOffset [3]float32 `yaml:"model_offset"`
}

type ServerSettings struct {
	Enabled          bool   `yaml:"enabled"`
	Addr             string `yaml:"addr"`
	UpdateIntervalMs int    `yaml:"update_interval_ms"`
}

type LogSettings struct {
	Level string `yaml:"level"`
}

// Default returns the settings used when no file is present.
func Default() Settings {
	return Settings{
		Window: WindowSettings{
			Width:  800,
			Height: 600,
			Title:  "meshview",
			VSync:  true,
		},
		Assets: AssetSettings{
			Mesh:       "gamedata/objects/stk.obj",
			TextureDir: "gamedata/textures",
		},
		Camera: CameraSettings{
			FOV:             60,
			Near:            0.01,
			Far:             1000,
			MoveStep:        0.1,
			LookSensitivity: 0.05,
		},
		Render: RenderSettings{
			Wireframe:   true,
			ModelOffset: [3]float32{0, -1, 2},
		},
		Server: ServerSettings{
			Addr:             ":8080",
			UpdateIntervalMs: 100,
		},
		Log: LogSettings{
			Level: "info",
		},
	}
}

// Load reads the settings at path on top of Default. A missing file is not an
// error; the defaults are returned.
func Load(path string) (Settings, error) {
	s := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("no settings file, using defaults", "path", path)
			return s, nil
		}
		return s, errors.Wrap(err, "read settings")
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, errors.Wrapf(err, "parse %s", path)
	}
	if err := s.Validate(); err != nil {
		return s, errors.Wrapf(err, "invalid settings in %s", path)
	}
	slog.Info("loaded settings", "path", path)
	return s, nil
}

// Validate checks ranges that would otherwise fail later inside GL or GLFW.
func (s *Settings) Validate() error {
	switch {
	case s.Window.Width <= 0 || s.Window.Height <= 0:
		return errors.Errorf("window size %dx%d must be positive", s.Window.Width, s.Window.Height)
	case s.Assets.Mesh == "":
		return errors.New("assets.mesh is required")
	case s.Camera.FOV <= 0 || s.Camera.FOV >= 180:
		return errors.Errorf("camera.fov %g out of range (0, 180)", s.Camera.FOV)
	case s.Camera.Near <= 0 || s.Camera.Far <= s.Camera.Near:
		return errors.Errorf("camera clip range [%g, %g] is invalid", s.Camera.Near, s.Camera.Far)
	case s.Server.Enabled && s.Server.UpdateIntervalMs <= 0:
		return errors.Errorf("server.update_interval_ms %d must be positive", s.Server.UpdateIntervalMs)
	}
	if _, err := ParseLevel(s.Log.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a settings log level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, errors.Errorf("unknown log level %q", name)
}
