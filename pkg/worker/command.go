package worker

import (
	"fmt"
	"strconv"
)

// CommandSpec describes one renderer invocation. TimelinePath and
// PresetDuration are mutually exclusive: a non-empty timeline always wins
// and the duration flag is never emitted alongside it.
type CommandSpec struct {
	Binary     string
	AudioPath  string
	OutputPath string
	PresetDir  string
	TextureDir string

	Mesh         string
	VideoWidth   int
	VideoHeight  int
	FPS          int
	BitrateKbps  int
	EncoderSpeed string

	TimelinePath   string
	PresetDuration int
}

// BuildArgs maps the spec into the renderer's argument vector. The function
// is pure; the same spec always yields the same argv.
func (s CommandSpec) BuildArgs() []string {
	args := make([]string, 0, 24)

	args = append(args,
		"-i", s.AudioPath,
		"-o", s.OutputPath,
		"-p", s.PresetDir,
		"--texture", s.TextureDir,
		"--mesh", s.Mesh,
		"--video-size", fmt.Sprintf("%dx%d", s.VideoWidth, s.VideoHeight),
		"-r", strconv.Itoa(s.FPS),
		"-b", strconv.Itoa(s.BitrateKbps),
		"--speed", s.EncoderSpeed,
	)

	if s.TimelinePath != "" {
		args = append(args, "--timeline", s.TimelinePath)
	} else {
		args = append(args, "-d", strconv.Itoa(s.PresetDuration))
	}

	return args
}
