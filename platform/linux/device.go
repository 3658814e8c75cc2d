//go:build linux
// +build linux

package linux

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/muka/go-bluetooth/bluez/profile/device"
	"github.com/sirupsen/logrus"

	"github.com/permissionlesstech/blemesh/platform"
)

const (
	bluezBus          = "org.bluez"
	bluezGattService  = "org.bluez.GattService1"
	bluezGattChar     = "org.bluez.GattCharacteristic1"
	dbusProperties    = "org.freedesktop.DBus.Properties"
	dbusObjectManager = "org.freedesktop.DBus.ObjectManager"

	// Tempo máximo de espera pela resolução dos serviços GATT após conectar
	servicesResolvedTimeout = 10 * time.Second
)

// remoteDevice encapsula um Device1 do BlueZ como um dispositivo remoto
type remoteDevice struct {
	dev  *device.Device1
	conn *dbus.Conn
	log  *logrus.Entry
}

func newRemoteDevice(dev *device.Device1, conn *dbus.Conn) *remoteDevice {
	return &remoteDevice{
		dev:  dev,
		conn: conn,
		log:  logrus.WithField("componente", "dispositivo-bluez"),
	}
}

// ID retorna o caminho do objeto do dispositivo no barramento
func (d *remoteDevice) ID() string {
	return string(d.dev.Path())
}

// Connect estabelece a conexão com o dispositivo. O BlueZ não expõe
// reconexão automática por conexão; autoReconnect é aceito pela interface e
// ignorado aqui, o que equivale ao comportamento desejado de tentativa única.
func (d *remoteDevice) Connect(ctx context.Context, autoReconnect bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	connected, err := d.dev.GetConnected()
	if err == nil && connected {
		return nil
	}

	if err := d.dev.Connect(); err != nil {
		return fmt.Errorf("erro ao conectar ao dispositivo: %v", err)
	}
	return nil
}

// DiscoverServices aguarda o BlueZ resolver os serviços GATT do dispositivo
// e os enumera pelo gerenciador de objetos do barramento
func (d *remoteDevice) DiscoverServices(ctx context.Context) ([]platform.Service, error) {
	if err := d.waitServicesResolved(ctx); err != nil {
		return nil, err
	}

	managed, err := d.managedObjects()
	if err != nil {
		return nil, err
	}

	devicePath := string(d.dev.Path())
	services := make([]platform.Service, 0)

	for path, interfaces := range managed {
		props, ok := interfaces[bluezGattService]
		if !ok || !strings.HasPrefix(string(path), devicePath+"/") {
			continue
		}

		uuid, ok := props["UUID"].Value().(string)
		if !ok {
			continue
		}

		services = append(services, &remoteService{
			conn:            d.conn,
			path:            path,
			uuid:            uuid,
			characteristics: d.characteristicsUnder(managed, path),
		})
	}

	return services, nil
}

// Disconnect encerra a conexão com o dispositivo
func (d *remoteDevice) Disconnect() error {
	return d.dev.Disconnect()
}

// waitServicesResolved aguarda a propriedade ServicesResolved do dispositivo
func (d *remoteDevice) waitServicesResolved(ctx context.Context) error {
	deadline := time.Now().Add(servicesResolvedTimeout)

	for {
		resolved, err := d.dev.GetServicesResolved()
		if err == nil && resolved {
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("timeout aguardando resolução de serviços GATT")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// managedObjects lista os objetos gerenciados pelo BlueZ no barramento
func (d *remoteDevice) managedObjects() (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, error) {
	var managed map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	obj := d.conn.Object(bluezBus, "/")
	if err := obj.Call(dbusObjectManager+".GetManagedObjects", 0).Store(&managed); err != nil {
		return nil, fmt.Errorf("erro ao listar objetos do BlueZ: %v", err)
	}
	return managed, nil
}

// characteristicsUnder enumera as características de um serviço, na ordem em
// que o barramento as reporta
func (d *remoteDevice) characteristicsUnder(
	managed map[dbus.ObjectPath]map[string]map[string]dbus.Variant,
	servicePath dbus.ObjectPath,
) []platform.Characteristic {
	characteristics := make([]platform.Characteristic, 0)

	for path, interfaces := range managed {
		props, ok := interfaces[bluezGattChar]
		if !ok || !strings.HasPrefix(string(path), string(servicePath)+"/") {
			continue
		}

		uuid, ok := props["UUID"].Value().(string)
		if !ok {
			continue
		}

		characteristics = append(characteristics, &remoteCharacteristic{
			conn: d.conn,
			path: path,
			uuid: uuid,
			log:  d.log.WithField("caracteristica", uuid),
		})
	}

	return characteristics
}

// remoteService é um serviço GATT de um dispositivo remoto
type remoteService struct {
	conn            *dbus.Conn
	path            dbus.ObjectPath
	uuid            string
	characteristics []platform.Characteristic
}

func (s *remoteService) UUID() string { return s.uuid }

func (s *remoteService) Characteristics() []platform.Characteristic {
	return s.characteristics
}

// remoteCharacteristic é uma característica GATT de um serviço remoto
type remoteCharacteristic struct {
	conn *dbus.Conn
	path dbus.ObjectPath
	uuid string
	log  *logrus.Entry

	mutex     sync.Mutex
	signals   chan *dbus.Signal
	stopWatch chan struct{}
}

func (c *remoteCharacteristic) UUID() string { return c.uuid }

// WriteWithoutResponse escreve na característica em modo comando, sem
// confirmação do link de rádio
func (c *remoteCharacteristic) WriteWithoutResponse(data []byte) error {
	obj := c.conn.Object(bluezBus, c.path)
	options := map[string]dbus.Variant{
		"type": dbus.MakeVariant("command"),
	}
	call := obj.Call(bluezGattChar+".WriteValue", 0, data, options)
	if call.Err != nil {
		return fmt.Errorf("erro ao escrever na característica: %v", call.Err)
	}
	return nil
}

// Subscribe habilita notificações na característica e encaminha cada valor
// notificado ao handler
func (c *remoteCharacteristic) Subscribe(handler func(value []byte)) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.signals != nil {
		return nil
	}

	matchOptions := []dbus.MatchOption{
		dbus.WithMatchObjectPath(c.path),
		dbus.WithMatchInterface(dbusProperties),
		dbus.WithMatchMember("PropertiesChanged"),
	}
	if err := c.conn.AddMatchSignal(matchOptions...); err != nil {
		return fmt.Errorf("erro ao registrar sinal de notificação: %v", err)
	}

	signals := make(chan *dbus.Signal, 16)
	c.conn.Signal(signals)
	stop := make(chan struct{})
	c.signals = signals
	c.stopWatch = stop

	go func() {
		for {
			select {
			case <-stop:
				return
			case signal, ok := <-signals:
				if !ok {
					return
				}
				if value, ok := notifiedValue(signal, c.path); ok {
					handler(value)
				}
			}
		}
	}()

	obj := c.conn.Object(bluezBus, c.path)
	if call := obj.Call(bluezGattChar+".StartNotify", 0); call.Err != nil {
		c.teardownWatch()
		return fmt.Errorf("erro ao habilitar notificações: %v", call.Err)
	}

	return nil
}

// Unsubscribe cancela a inscrição de notificações
func (c *remoteCharacteristic) Unsubscribe() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.signals == nil {
		return nil
	}

	obj := c.conn.Object(bluezBus, c.path)
	if call := obj.Call(bluezGattChar+".StopNotify", 0); call.Err != nil {
		c.log.WithError(call.Err).Debug("erro ao desabilitar notificações")
	}

	c.teardownWatch()
	return nil
}

// teardownWatch remove o watch de sinais; o chamador detém o mutex
func (c *remoteCharacteristic) teardownWatch() {
	matchOptions := []dbus.MatchOption{
		dbus.WithMatchObjectPath(c.path),
		dbus.WithMatchInterface(dbusProperties),
		dbus.WithMatchMember("PropertiesChanged"),
	}
	if err := c.conn.RemoveMatchSignal(matchOptions...); err != nil {
		c.log.WithError(err).Debug("erro ao remover sinal de notificação")
	}

	c.conn.RemoveSignal(c.signals)
	close(c.stopWatch)
	c.signals = nil
	c.stopWatch = nil
}

// notifiedValue extrai o valor notificado de um sinal PropertiesChanged da
// característica, se houver
func notifiedValue(signal *dbus.Signal, path dbus.ObjectPath) ([]byte, bool) {
	if signal.Path != path || len(signal.Body) < 2 {
		return nil, false
	}

	iface, ok := signal.Body[0].(string)
	if !ok || iface != bluezGattChar {
		return nil, false
	}

	changed, ok := signal.Body[1].(map[string]dbus.Variant)
	if !ok {
		return nil, false
	}

	variant, ok := changed["Value"]
	if !ok {
		return nil, false
	}

	value, ok := variant.Value().([]byte)
	return value, ok
}
