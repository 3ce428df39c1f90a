package rpmsg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ardnew/psh/hub/hal"
	"github.com/ardnew/psh/pkg"
)

// DefaultRemoteproc is the sysfs node of the first remote processor.
const DefaultRemoteproc = "/sys/class/remoteproc/remoteproc0"

// Loader boots firmware through the kernel remoteproc interface.
type Loader struct {
	Dir      string // remoteproc sysfs directory
	Firmware string // image name under /lib/firmware; empty keeps the current one
}

// SetupFirmware stops the processor, selects the image and starts it.
func (l *Loader) SetupFirmware(ctx context.Context) error {
	dir := l.Dir
	if dir == "" {
		dir = DefaultRemoteproc
	}

	// Stopping an already stopped processor fails; that is fine.
	if err := write(dir, "state", "stop"); err != nil {
		pkg.LogDebug(pkg.ComponentHAL, "remoteproc stop", "error", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.Firmware != "" {
		if err := write(dir, "firmware", l.Firmware); err != nil {
			return err
		}
	}
	if err := write(dir, "state", "start"); err != nil {
		return err
	}

	pkg.LogInfo(pkg.ComponentHAL, "remoteproc started", "dir", dir, "firmware", l.Firmware)
	return nil
}

func write(dir, name, value string) error {
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("remoteproc %s: %w", name, err)
	}
	defer f.Close()
	if _, err := f.WriteString(value); err != nil {
		return fmt.Errorf("remoteproc %s: %w", name, err)
	}
	return nil
}

var _ hal.FirmwareLoader = (*Loader)(nil)
