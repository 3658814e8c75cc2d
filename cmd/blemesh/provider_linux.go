//go:build linux
// +build linux

package main

import (
	"github.com/permissionlesstech/blemesh/platform"
	"github.com/permissionlesstech/blemesh/platform/linux"
)

// defaultProvider retorna o provedor BLE do sistema operacional atual
func defaultProvider() (platform.Provider, error) {
	return linux.NewProvider()
}
