//go:build linux
// +build linux

package linux

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/muka/go-bluetooth/api"
	"github.com/muka/go-bluetooth/bluez/profile/adapter"

	"github.com/permissionlesstech/blemesh/platform"
)

// Provider agrupa os canais BLE disponíveis no Linux via BlueZ. O BlueZ não
// oferece um serviço periférico alternativo nem uma ponte de serviço nativo;
// esses canais retornam nil e o núcleo do transporte os ignora.
type Provider struct {
	adapter    *adapter.Adapter1
	conn       *dbus.Conn
	scanner    *Scanner
	peripheral *Peripheral
}

// NewProvider cria o provedor BLE para Linux usando o adaptador padrão
func NewProvider() (*Provider, error) {
	a, err := api.GetDefaultAdapter()
	if err != nil {
		return nil, fmt.Errorf("erro ao obter adaptador Bluetooth: %v", err)
	}

	// Verificar se o adaptador está ligado
	powered, err := a.GetPowered()
	if err != nil {
		return nil, fmt.Errorf("erro ao verificar estado do adaptador: %v", err)
	}
	if !powered {
		if err := a.SetPowered(true); err != nil {
			return nil, fmt.Errorf("erro ao ligar adaptador Bluetooth: %v", err)
		}
	}

	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("erro ao conectar ao barramento do sistema: %v", err)
	}

	adapterID, err := a.GetAdapterID()
	if err != nil {
		return nil, fmt.Errorf("erro ao obter ID do adaptador: %v", err)
	}

	return &Provider{
		adapter:    a,
		conn:       conn,
		scanner:    newScanner(a, conn),
		peripheral: newPeripheral(adapterID),
	}, nil
}

// Scanner retorna o scanner BLE do BlueZ
func (p *Provider) Scanner() platform.Scanner {
	return p.scanner
}

// Peripheral retorna o serviço periférico primário do BlueZ
func (p *Provider) Peripheral() platform.Peripheral {
	return p.peripheral
}

// AltPeripheral retorna nil: o BlueZ não oferece serviço periférico alternativo
func (p *Provider) AltPeripheral() platform.AltPeripheral {
	return nil
}

// Bridge retorna nil: não há ponte de serviço nativo no Linux
func (p *Provider) Bridge() platform.NativeBridge {
	return nil
}

// PlatformName retorna o nome da plataforma
func (p *Provider) PlatformName() string {
	return "Linux"
}
