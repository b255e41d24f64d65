package runtime

import (
	"context"
	"fmt"
	"time"
)

// neutralHelperImage is the image used for the self-update trampoline
// container: a minimal image carrying the docker CLI, distinct from any
// RAPP or probe image so it survives the RAPP container's own recreation.
const neutralHelperImage = "docker:cli"

// selfUpdateTrampoline pulls the RAPP's own image and launches a detached
// helper container — bind-mounting the compose directory and the host's
// docker socket — which runs `docker compose up -d <self_service>` to
// recreate the current container. An in-process `up -d <self>` would be
// killed mid-operation by the very recreation it's trying to perform, so
// the work must happen from a container the replacement doesn't touch.
func (d *Driver) selfUpdateTrampoline(ctx context.Context) error {
	if _, stderr, err := d.runner.Run(ctx, d.cfg.ComposePath, "docker", d.composeArgs("pull", d.cfg.ServiceName)...); err != nil {
		return fmt.Errorf("pull own image: %w", err)
	} else if stderr != "" {
		d.log.Debug("pull own image", "stderr", stderr)
	}

	if _, stderr, err := d.runner.Run(ctx, d.cfg.ComposePath, "docker", "pull", neutralHelperImage); err != nil {
		return fmt.Errorf("pull helper image: %w", err)
	} else if stderr != "" {
		d.log.Debug("pull helper image", "stderr", stderr)
	}

	helperName := fmt.Sprintf("rapp-updater-%d", time.Now().Unix())
	composeUpArgs := d.composeArgs("up", "-d", d.cfg.ServiceName)

	runArgs := []string{
		"run", "--rm", "-d",
		"--name", helperName,
		"-v", "/var/run/docker.sock:/var/run/docker.sock",
		"-v", d.cfg.ComposePath + ":" + d.cfg.ComposePath,
		"-w", d.cfg.ComposePath,
		neutralHelperImage,
	}
	runArgs = append(runArgs, composeUpArgs...)

	d.log.Info("self-update trampoline starting", "helper", helperName, "image", neutralHelperImage)

	if _, stderr, err := d.runner.Run(ctx, d.cfg.ComposePath, "docker", runArgs...); err != nil {
		return fmt.Errorf("launch self-update trampoline: %w", err)
	} else if stderr != "" {
		d.log.Debug("launch self-update trampoline", "stderr", stderr)
	}
	return nil
}
