//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Runs the unit tests with the race detector.
func (Test) Unit() error {
	_, err := executeCmd("go", withArgs("test", "-race", "-count=1", "./engine/..."), withStream())
	return err
}

// Runs the unit tests of the frame and descriptor code only.
func (Test) Vulkan() error {
	_, err := executeCmd("go", withArgs("test", "-race", "-count=1", "-v", "./engine/renderer/..."), withStream())
	return err
}
