package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"

	"todoagent/internal/config"
)

// InitCmd 写入项目配置模板
// InitCmd writes the project config scaffold
type InitCmd struct {
	Dir string `arg:"" optional:"" type:"path" help:"Project directory (defaults to the working directory)"`
}

func (c *InitCmd) Run(out io.Writer) error {
	dir := c.Dir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		dir = cwd
	}
	path, created, err := config.InitProjectConfig(afero.NewOsFs(), dir)
	if err != nil {
		return err
	}
	if !created {
		_, err = fmt.Fprintf(out, "config already exists: %s\n", path)
		return err
	}
	_, err = fmt.Fprintf(out, "wrote %s\n", path)
	return err
}
