package main

import (
	"io"

	"github.com/ardnew/psh/hub"
)

var (
	ParseArgs     = parseArgs
	LoadConfig    = loadConfig
	DefaultConfig = defaultConfig
)

type Config = config

func (c *config) HubConfig() hub.Config { return c.hubConfig() }

func MockStdout(w io.Writer) (restore func()) {
	orig := Stdout
	Stdout = w
	return func() {
		Stdout = orig
	}
}
