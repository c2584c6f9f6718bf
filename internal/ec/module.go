package ec

import (
	"context"
	"os/exec"

	"codeberg.org/mutker/ecfanctl/internal/errors"
)

const (
	DefaultModuleName = "ec_sys"
	modprobePath      = "/sbin/modprobe"
)

// LoadModule asks modprobe to load the kernel module that exposes the
// register file. Loading an already loaded module is not an error.
func LoadModule(ctx context.Context, name string) error {
	return loadModuleWith(ctx, modprobePath, name)
}

func loadModuleWith(ctx context.Context, modprobe, name string) error {
	errFactory := errors.New()
	if name == "" {
		return errFactory.WithData(errors.ErrInvalidArgument, "empty module name")
	}

	out, err := exec.CommandContext(ctx, modprobe, name).CombinedOutput()
	if err != nil {
		return errFactory.WithData(errors.ErrLoadModule, struct {
			Module string
			Output string
			Error  string
		}{
			Module: name,
			Output: string(out),
			Error:  err.Error(),
		})
	}

	return nil
}
