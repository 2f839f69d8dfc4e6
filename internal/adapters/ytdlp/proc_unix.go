//go:build unix

package ytdlp

import (
	"os/exec"
	"syscall"
)

// configureKill puts yt-dlp in its own process group so cancellation also
// reaches the ffmpeg children it spawns for merging and transcoding.
func configureKill(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error { return killProcess(cmd) }
}

func killProcess(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}
