//go:build !linux
// +build !linux

package main

import (
	"fmt"
	"runtime"

	"github.com/permissionlesstech/blemesh/platform"
)

// defaultProvider retorna o provedor BLE do sistema operacional atual
func defaultProvider() (platform.Provider, error) {
	return nil, fmt.Errorf("provedor Bluetooth para %s ainda não implementado", runtime.GOOS)
}
