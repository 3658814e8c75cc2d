//go:build linux
// +build linux

package linux

import (
	"fmt"
	"strings"
	"sync"

	"github.com/muka/go-bluetooth/api"
	"github.com/muka/go-bluetooth/api/service"
	"github.com/muka/go-bluetooth/bluez/profile/advertising"
	"github.com/muka/go-bluetooth/bluez/profile/gatt"
	"github.com/sirupsen/logrus"
)

// companyID usado no campo de dados do fabricante do anúncio.
// 0xFFFF é reservado pela especificação para uso interno e testes.
const manufacturerCompanyID = uint16(0xFFFF)

// Peripheral implementa o papel periférico no Linux: um aplicativo GATT
// registrado no BlueZ mais o anúncio LE
type Peripheral struct {
	adapterID string

	app   *service.App
	ready bool

	cleanupAdvertisement func()
	isAdvertising        bool

	onDataReceived func(deviceID string, value []byte)

	mutex sync.Mutex
	log   *logrus.Entry
}

func newPeripheral(adapterID string) *Peripheral {
	return &Peripheral{
		adapterID: adapterID,
		log:       logrus.WithField("componente", "periferico-bluez"),
	}
}

// Ready indica se o aplicativo GATT local já foi registrado no BlueZ
func (p *Peripheral) Ready() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.ready
}

// RegisterService registra o serviço GATT local com as características
// informadas. As centrais remotas escrevem nessas características para
// entregar mensagens a este nó.
func (p *Peripheral) RegisterService(serviceUUID string, characteristicUUIDs []string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.app != nil {
		return nil
	}

	prefix, serviceFragment, suffix, err := splitUUID(serviceUUID)
	if err != nil {
		return err
	}

	app, err := service.NewApp(service.AppOptions{
		AdapterID:  p.adapterID,
		UUID:       prefix,
		UUIDSuffix: suffix,
	})
	if err != nil {
		return fmt.Errorf("erro ao criar aplicativo GATT: %v", err)
	}

	svc, err := app.NewService(serviceFragment)
	if err != nil {
		return fmt.Errorf("erro ao criar serviço GATT: %v", err)
	}
	if err := app.AddService(svc); err != nil {
		return fmt.Errorf("erro ao adicionar serviço GATT: %v", err)
	}

	for _, characteristicUUID := range characteristicUUIDs {
		_, characteristicFragment, _, err := splitUUID(characteristicUUID)
		if err != nil {
			return err
		}

		char, err := svc.NewChar(characteristicFragment)
		if err != nil {
			return fmt.Errorf("erro ao criar característica GATT: %v", err)
		}

		char.Properties.Flags = []string{
			gatt.FlagCharacteristicWrite,
			gatt.FlagCharacteristicWriteWithoutResponse,
			gatt.FlagCharacteristicNotify,
		}

		char.OnWrite(func(c *service.Char, value []byte) ([]byte, error) {
			p.mutex.Lock()
			callback := p.onDataReceived
			p.mutex.Unlock()

			if callback != nil {
				// O BlueZ não identifica a central que escreveu;
				// o identificador de origem fica vazio
				callback("", value)
			}
			return nil, nil
		})

		if err := svc.AddChar(char); err != nil {
			return fmt.Errorf("erro ao adicionar característica GATT: %v", err)
		}
	}

	if err := app.Run(); err != nil {
		return fmt.Errorf("erro ao registrar aplicativo GATT: %v", err)
	}

	p.app = app
	p.ready = true

	return nil
}

// StartAdvertising inicia o anúncio LE com o nome local, o UUID de serviço e
// os dados do fabricante informados
func (p *Peripheral) StartAdvertising(localName, serviceUUID string, manufacturerData []byte) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.isAdvertising {
		return nil
	}

	props := &advertising.LEAdvertisement1Properties{
		Type:         advertising.AdvertisementTypePeripheral,
		ServiceUUIDs: []string{serviceUUID},
		LocalName:    localName,
		Includes:     []string{advertising.SupportedIncludesTxPower},
	}
	if len(manufacturerData) > 0 {
		props.ManufacturerData = map[uint16]interface{}{
			manufacturerCompanyID: manufacturerData,
		}
	}

	cleanup, err := api.ExposeAdvertisement(p.adapterID, props, 0)
	if err != nil {
		return fmt.Errorf("erro ao criar anúncio: %v", err)
	}

	p.cleanupAdvertisement = cleanup
	p.isAdvertising = true

	return nil
}

// StopAdvertising para o anúncio LE
func (p *Peripheral) StopAdvertising() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.isAdvertising {
		return nil
	}

	if p.cleanupAdvertisement != nil {
		p.cleanupAdvertisement()
		p.cleanupAdvertisement = nil
	}

	p.isAdvertising = false
	return nil
}

// SetOnDataReceived registra o callback para escritas de centrais remotas
func (p *Peripheral) SetOnDataReceived(callback func(deviceID string, value []byte)) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.onDataReceived = callback
}

// splitUUID separa um UUID de 128 bits nos fragmentos usados pelo gerador de
// UUIDs do aplicativo GATT: prefixo (4 hex), fragmento (4 hex) e sufixo
func splitUUID(raw string) (prefix, fragment, suffix string, err error) {
	cleaned := strings.ToUpper(raw)
	if len(cleaned) != 36 {
		return "", "", "", fmt.Errorf("uuid inválido para o serviço GATT: %s", raw)
	}
	return cleaned[0:4], cleaned[4:8], cleaned[8:], nil
}
