//go:build linux
// +build linux

package linux

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/muka/go-bluetooth/api"
	"github.com/muka/go-bluetooth/bluez/profile/adapter"
	"github.com/muka/go-bluetooth/bluez/profile/device"
	"github.com/sirupsen/logrus"

	"github.com/permissionlesstech/blemesh/platform"
)

// Scanner implementa o papel central no Linux sobre a descoberta de
// dispositivos do BlueZ
type Scanner struct {
	adapter *adapter.Adapter1
	conn    *dbus.Conn
	log     *logrus.Entry
}

func newScanner(a *adapter.Adapter1, conn *dbus.Conn) *Scanner {
	return &Scanner{
		adapter: a,
		conn:    conn,
		log:     logrus.WithField("componente", "scanner-bluez"),
	}
}

// Scan inicia a descoberta contínua de dispositivos BLE e converte cada
// dispositivo reportado pelo BlueZ em um anúncio. A função de cancelamento
// retornada para a descoberta e fecha o canal de anúncios.
func (s *Scanner) Scan() (<-chan platform.Advertisement, func(), error) {
	// Apenas BLE
	filter := adapter.NewDiscoveryFilter()
	filter.Transport = "le"

	if err := s.adapter.SetDiscoveryFilter(filter.ToMap()); err != nil {
		return nil, nil, fmt.Errorf("erro ao configurar filtro de descoberta: %v", err)
	}

	discovery, cancel, err := api.Discover(s.adapter, &filter)
	if err != nil {
		return nil, nil, fmt.Errorf("erro ao iniciar descoberta: %v", err)
	}

	out := make(chan platform.Advertisement)
	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			close(done)
		})
	}

	go func() {
		defer close(out)

		for {
			select {
			case <-done:
				return
			case ev, ok := <-discovery:
				if !ok {
					return
				}
				if ev.Type != adapter.DeviceAdded {
					continue
				}

				adv, err := s.advertisementFromPath(ev.Path)
				if err != nil {
					s.log.WithError(err).Debug("erro ao ler dispositivo descoberto")
					continue
				}

				select {
				case out <- adv:
				case <-done:
					return
				}
			}
		}
	}()

	return out, stop, nil
}

// advertisementFromPath monta um anúncio a partir do objeto Device1 do BlueZ
func (s *Scanner) advertisementFromPath(path dbus.ObjectPath) (platform.Advertisement, error) {
	dev, err := device.NewDevice1(path)
	if err != nil {
		return platform.Advertisement{}, fmt.Errorf("erro ao criar objeto de dispositivo: %v", err)
	}

	localName, err := dev.GetName()
	if err != nil {
		localName = ""
	}

	uuids, err := dev.GetUUIDs()
	if err != nil {
		uuids = nil
	}

	return platform.Advertisement{
		LocalName:        localName,
		ServiceUUIDs:     uuids,
		ManufacturerData: manufacturerEntries(dev),
		Device:           newRemoteDevice(dev, s.conn),
	}, nil
}

// manufacturerEntries extrai as entradas de dados do fabricante do
// dispositivo. O BlueZ as entrega em um mapa, portanto a ordem entre
// múltiplas entradas é indefinida.
func manufacturerEntries(dev *device.Device1) []platform.ManufacturerData {
	raw, err := dev.GetManufacturerData()
	if err != nil || len(raw) == 0 {
		return nil
	}

	entries := make([]platform.ManufacturerData, 0, len(raw))
	for companyID, value := range raw {
		data := manufacturerBytes(value)
		if data == nil {
			continue
		}
		entries = append(entries, platform.ManufacturerData{
			CompanyID: companyID,
			Data:      data,
		})
	}
	return entries
}

// manufacturerBytes converte o valor reportado pelo dbus em bytes
func manufacturerBytes(value interface{}) []byte {
	switch v := value.(type) {
	case []byte:
		return v
	case dbus.Variant:
		if data, ok := v.Value().([]byte); ok {
			return data
		}
	}
	return nil
}
