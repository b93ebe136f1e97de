package compose

import (
	"context"
	"fmt"
	"sort"

	"github.com/compose-spec/compose-go/v2/cli"
	composetypes "github.com/compose-spec/compose-go/v2/types"
)

// LoadProject parses the primary compose files with every profile active.
func (c *Client) LoadProject(ctx context.Context, extraFiles ...string) (*composetypes.Project, error) {
	files := make([]string, 0, len(c.cfg.ComposeFiles)+len(extraFiles))
	for _, f := range append(append([]string(nil), c.cfg.ComposeFiles...), extraFiles...) {
		files = append(files, c.cfg.Path(f))
	}

	opts, err := cli.NewProjectOptions(
		files,
		cli.WithName(c.cfg.Project),
		cli.WithWorkingDirectory(c.cfg.ProjectDir),
		cli.WithOsEnv,
		cli.WithDotEnv,
		cli.WithProfiles([]string{"*"}),
	)
	if err != nil {
		return nil, fmt.Errorf("project options: %w", err)
	}
	project, err := cli.ProjectFromOptions(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("load compose project: %w", err)
	}
	return project, nil
}

// MissingServices returns the ids that no compose file defines.
func (c *Client) MissingServices(ctx context.Context, ids []string) ([]string, error) {
	project, err := c.LoadProject(ctx)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, id := range ids {
		if _, ok := project.Services[id]; ok {
			continue
		}
		if _, ok := project.DisabledServices[id]; ok {
			continue
		}
		missing = append(missing, id)
	}
	sort.Strings(missing)
	return missing, nil
}
