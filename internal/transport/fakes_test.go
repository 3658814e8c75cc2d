package transport

import (
	"context"
	"sync"

	"github.com/permissionlesstech/blemesh/platform"
)

// Fakes das interfaces da plataforma usados nos testes do transporte.

type fakeCharacteristic struct {
	uuid         string
	writeErr     error
	subscribeErr error

	mutex        sync.Mutex
	writes       [][]byte
	handler      func(value []byte)
	unsubscribed bool
}

func (c *fakeCharacteristic) UUID() string { return c.uuid }

// WriteWithoutResponse registra a tentativa de escrita mesmo quando
// configurada para falhar, para que os testes possam afirmar que um peer
// falho foi tentado
func (c *fakeCharacteristic) WriteWithoutResponse(data []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.writes = append(c.writes, append([]byte(nil), data...))
	return c.writeErr
}

func (c *fakeCharacteristic) Subscribe(handler func(value []byte)) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.subscribeErr != nil {
		return c.subscribeErr
	}
	c.handler = handler
	return nil
}

func (c *fakeCharacteristic) Unsubscribe() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.unsubscribed = true
	c.handler = nil
	return nil
}

// notify simula uma notificação vinda do peer remoto
func (c *fakeCharacteristic) notify(value []byte) {
	c.mutex.Lock()
	handler := c.handler
	c.mutex.Unlock()

	if handler != nil {
		handler(value)
	}
}

func (c *fakeCharacteristic) writeCount() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return len(c.writes)
}

func (c *fakeCharacteristic) subscribed() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.handler != nil
}

type fakeService struct {
	uuid            string
	characteristics []platform.Characteristic
}

func (s *fakeService) UUID() string { return s.uuid }

func (s *fakeService) Characteristics() []platform.Characteristic {
	return s.characteristics
}

type fakeDevice struct {
	id          string
	connectErr  error
	discoverErr error
	services    []platform.Service

	mutex             sync.Mutex
	connectCalls      int
	disconnectCalls   int
	lastAutoReconnect bool
}

func (d *fakeDevice) ID() string { return d.id }

func (d *fakeDevice) Connect(ctx context.Context, autoReconnect bool) error {
	d.mutex.Lock()
	d.connectCalls++
	d.lastAutoReconnect = autoReconnect
	d.mutex.Unlock()

	return d.connectErr
}

func (d *fakeDevice) DiscoverServices(ctx context.Context) ([]platform.Service, error) {
	if d.discoverErr != nil {
		return nil, d.discoverErr
	}
	return d.services, nil
}

func (d *fakeDevice) Disconnect() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.disconnectCalls++
	return nil
}

func (d *fakeDevice) connectCount() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	return d.connectCalls
}

func (d *fakeDevice) disconnectCount() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	return d.disconnectCalls
}

type fakeScanner struct {
	scanErr error

	mutex       sync.Mutex
	events      chan platform.Advertisement
	scanCalls   int
	cancelCalls int
}

func (s *fakeScanner) Scan() (<-chan platform.Advertisement, func(), error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.scanCalls++
	if s.scanErr != nil {
		return nil, nil, s.scanErr
	}

	events := make(chan platform.Advertisement, 16)
	s.events = events

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mutex.Lock()
			s.cancelCalls++
			s.mutex.Unlock()
			close(events)
		})
	}

	return events, cancel, nil
}

// emit injeta um anúncio no fluxo de escaneamento ativo
func (s *fakeScanner) emit(adv platform.Advertisement) {
	s.mutex.Lock()
	events := s.events
	s.mutex.Unlock()

	if events != nil {
		events <- adv
	}
}

func (s *fakeScanner) scanCount() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.scanCalls
}

func (s *fakeScanner) cancelCount() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.cancelCalls
}

type fakePeripheral struct {
	ready       bool
	registerErr error
	startErr    error

	mutex           sync.Mutex
	readyCalls      int
	registerCalls   int
	startCalls      int
	stopCalls       int
	lastLocalName   string
	lastServiceUUID string
	lastDigest      []byte
	onDataReceived  func(deviceID string, value []byte)
}

func (p *fakePeripheral) Ready() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.readyCalls++
	return p.ready
}

func (p *fakePeripheral) RegisterService(serviceUUID string, characteristicUUIDs []string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.registerCalls++
	return p.registerErr
}

func (p *fakePeripheral) StartAdvertising(localName, serviceUUID string, manufacturerData []byte) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.startCalls++
	if p.startErr != nil {
		return p.startErr
	}
	p.lastLocalName = localName
	p.lastServiceUUID = serviceUUID
	p.lastDigest = manufacturerData
	return nil
}

func (p *fakePeripheral) StopAdvertising() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.stopCalls++
	return nil
}

func (p *fakePeripheral) SetOnDataReceived(callback func(deviceID string, value []byte)) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.onDataReceived = callback
}

// receiveWrite simula uma escrita de uma central remota no serviço local
func (p *fakePeripheral) receiveWrite(deviceID string, value []byte) {
	p.mutex.Lock()
	callback := p.onDataReceived
	p.mutex.Unlock()

	if callback != nil {
		callback(deviceID, value)
	}
}

type fakeAltPeripheral struct {
	available  bool
	sendResult bool
	sendErr    error

	mutex      sync.Mutex
	startCalls int
	stopCalls  int
	payloads   [][]byte
}

func (a *fakeAltPeripheral) Available() bool { return a.available }

func (a *fakeAltPeripheral) StartAdvertising(peerID, nickname string) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.startCalls++
	return nil
}

func (a *fakeAltPeripheral) StopAdvertising() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.stopCalls++
	return nil
}

func (a *fakeAltPeripheral) SendMessage(payload []byte) (bool, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.sendErr != nil {
		return false, a.sendErr
	}
	a.payloads = append(a.payloads, append([]byte(nil), payload...))
	return a.sendResult, nil
}

func (a *fakeAltPeripheral) sendCount() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	return len(a.payloads)
}

type fakeBridge struct {
	available  bool
	startOK    bool
	sendResult bool
	sendErr    error

	mutex      sync.Mutex
	startCalls int
	stopCalls  int
	payloads   [][]byte
	onMessage  func(peerID string, payload []byte)
}

func (b *fakeBridge) Available() bool { return b.available }

func (b *fakeBridge) StartAdvertisingService(peerID, nickname string) (bool, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.startCalls++
	return b.startOK, nil
}

func (b *fakeBridge) StopAdvertisingService() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.stopCalls++
	return nil
}

func (b *fakeBridge) SendMessage(payload []byte) (bool, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.sendErr != nil {
		return false, b.sendErr
	}
	b.payloads = append(b.payloads, append([]byte(nil), payload...))
	return b.sendResult, nil
}

func (b *fakeBridge) SetOnMessageReceived(callback func(peerID string, payload []byte)) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.onMessage = callback
}

// deliver simula uma mensagem entregue pela ponte nativa
func (b *fakeBridge) deliver(peerID string, payload []byte) {
	b.mutex.Lock()
	callback := b.onMessage
	b.mutex.Unlock()

	if callback != nil {
		callback(peerID, payload)
	}
}

func (b *fakeBridge) sendCount() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return len(b.payloads)
}

type fakeProvider struct {
	scanner    platform.Scanner
	peripheral platform.Peripheral
	alt        platform.AltPeripheral
	bridge     platform.NativeBridge
}

func (p *fakeProvider) Scanner() platform.Scanner             { return p.scanner }
func (p *fakeProvider) Peripheral() platform.Peripheral       { return p.peripheral }
func (p *fakeProvider) AltPeripheral() platform.AltPeripheral { return p.alt }
func (p *fakeProvider) Bridge() platform.NativeBridge         { return p.bridge }
func (p *fakeProvider) PlatformName() string                  { return "Fake" }

// meshDevice monta um dispositivo fake que expõe o serviço mesh com a
// característica bem conhecida
func meshDevice(id string, characteristic *fakeCharacteristic) *fakeDevice {
	return &fakeDevice{
		id: id,
		services: []platform.Service{
			&fakeService{
				uuid:            ServiceUUID,
				characteristics: []platform.Characteristic{characteristic},
			},
		},
	}
}

// meshAdvertisement monta um anúncio aceito pelo filtro de descoberta
func meshAdvertisement(peerID string, digest []byte, dev platform.Device) platform.Advertisement {
	var entries []platform.ManufacturerData
	if digest != nil {
		entries = []platform.ManufacturerData{{CompanyID: 0xFFFF, Data: digest}}
	}
	return platform.Advertisement{
		LocalName:        peerID,
		ServiceUUIDs:     []string{ServiceUUID},
		ManufacturerData: entries,
		Device:           dev,
	}
}
