/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import (
	"github.com/ssargent/marinedb/cmd/marine/cmd"
	"github.com/ssargent/marinedb/pkg/di"
)

func main() {
	// Initialize dependency injection container
	container := di.NewContainer()

	cmd.Execute(container)
}
