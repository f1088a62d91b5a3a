//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Builds and starts the testbed with config.toml.
func (Run) Engine() error {
	mg.Deps(Build.Engine)
	fmt.Println("Run engine...")
	if _, err := executeCmd("bin/cadence", withArgs("-config", "config.toml"), withStream()); err != nil {
		return err
	}
	return nil
}
