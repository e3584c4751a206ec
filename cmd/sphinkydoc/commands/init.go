package commands

import (
	"fmt"

	"git.home.luguber.info/inful/sphinkydoc/internal/config"
	dberrors "git.home.luguber.info/inful/sphinkydoc/internal/foundation/errors"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite existing configuration file"`
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	if err := config.Init(root.Config, i.Force); err != nil {
		return dberrors.WrapError(err, dberrors.CategoryConfig, "failed to write configuration").
			WithContext("path", root.Config).Fatal().Build()
	}
	_, _ = fmt.Fprintf(g.Stdout, "Wrote configuration to %s\n", root.Config)
	return nil
}
