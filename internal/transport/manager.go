package transport

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/permissionlesstech/blemesh/platform"
)

// Config define as configurações do transporte
type Config struct {
	// UUIDs bem conhecidos do serviço e da característica mesh
	ServiceUUID        string
	CharacteristicUUID string

	// Sondagem de prontidão do periférico antes do anúncio
	ReadyPollAttempts int
	ReadyPollInterval time.Duration
}

// DefaultConfig retorna a configuração padrão do transporte
func DefaultConfig() *Config {
	return &Config{
		ServiceUUID:        ServiceUUID,
		CharacteristicUUID: CharacteristicUUID,
		ReadyPollAttempts:  DefaultReadyPollAttempts,
		ReadyPollInterval:  DefaultReadyPollInterval,
	}
}

// Transport é o gerenciador de transporte de papel duplo: o nó atua
// simultaneamente como periférico BLE (anunciante) e central BLE (scanner)
// para formar uma malha ad-hoc de peers próximos, sem servidor central.
//
// Uma única instância por processo é esperada, mas o estado é construído
// explicitamente e passado por referência, nunca recriado como estado
// global ambiente. Os callbacks da plataforma (stream de escaneamento,
// notificações, entrega pela ponte nativa) podem se intercalar entre si;
// as flags e os callbacks registrados são protegidos pelo mutex do
// transporte e a mutação do registro de conexões pelo mutex do gerenciador
// de conexões.
//
// Não há mecanismo de backpressure: anúncios e notificações são processados
// na taxa em que a plataforma os entrega, sem fila ou política de descarte
// interna: o primeiro evento aceito para um peer vence, via checagem de
// idempotência do registro.
type Transport struct {
	config   *Config
	provider platform.Provider

	connections *ConnectionManager
	filter      *discoveryFilter
	router      *Router

	mutex           sync.RWMutex
	isAdvertising   bool
	isScanning      bool
	peerID          string
	nickname        string
	publicKeyDigest []byte
	stopScan        func()
	scanDone        chan struct{}

	// Callbacks do chamador (um assinante ativo por fluxo de eventos)
	onPeerDiscovered   func(peerID string, publicKeyDigest []byte)
	onMessageReceived  func(peerID string, payload []byte)
	onPeerDisconnected func(peerID string)

	ctx    context.Context
	cancel context.CancelFunc
	log    *logrus.Entry
}

// New cria um novo transporte sobre os canais da plataforma informada
func New(config *Config, provider platform.Provider) (*Transport, error) {
	if config == nil {
		config = DefaultConfig()
	}

	serviceUUID, err := uuid.Parse(config.ServiceUUID)
	if err != nil {
		return nil, ErrInvalidServiceUUID
	}
	characteristicUUID, err := uuid.Parse(config.CharacteristicUUID)
	if err != nil {
		return nil, ErrInvalidCharacteristicUUID
	}

	ctx, cancel := context.WithCancel(context.Background())

	t := &Transport{
		config:      config,
		provider:    provider,
		connections: newConnectionManager(serviceUUID, characteristicUUID),
		filter:      newDiscoveryFilter(serviceUUID),
		ctx:         ctx,
		cancel:      cancel,
		log:         logrus.WithField("componente", "transporte"),
	}

	t.connections.onMessageReceived = t.dispatchMessage
	t.connections.onPeerDisconnected = t.dispatchDisconnect

	// Canais de entrega em ordem estrita de prioridade: serviço periférico
	// alternativo, ponte nativa, escrita direta nos peers conectados
	channels := make([]DeliveryChannel, 0, 3)
	if alt := provider.AltPeripheral(); alt != nil {
		channels = append(channels, &altPeripheralChannel{alt: alt})
	}
	if bridge := provider.Bridge(); bridge != nil {
		bridge.SetOnMessageReceived(t.dispatchMessage)
		channels = append(channels, &bridgeChannel{bridge: bridge})
	}
	channels = append(channels, newFanOutChannel(t.connections))
	t.router = newRouter(channels...)

	// Escritas de centrais remotas no serviço GATT local chegam etiquetadas
	// com o identificador do dispositivo de origem
	if peripheral := provider.Peripheral(); peripheral != nil {
		peripheral.SetOnDataReceived(t.dispatchMessage)
	}

	return t, nil
}

// StartAdvertising inicia o anúncio da presença do nó. É um no-op se o
// anúncio já está ativo. Cada canal de papel periférico disponível é
// iniciado de forma independente e tolerante: a falha de um canal é
// registrada e engolida, nunca impede o uso de outro nem é propagada.
// Antes de anunciar, a prontidão do periférico é sondada por um número
// limitado de tentativas, pois a inicialização do hardware é assíncrona em
// algumas plataformas; o anúncio prossegue em melhor esforço mesmo sem
// confirmação. Um nó que anuncia também escaneia: ao final, o escaneamento
// é disparado, já que um peer da malha precisa localizar os demais.
func (t *Transport) StartAdvertising(peerID, nickname string, publicKeyDigest []byte) error {
	if len(peerID) != PeerIDLength {
		return ErrInvalidPeerID
	}

	t.mutex.Lock()
	if t.isAdvertising {
		t.mutex.Unlock()
		return nil
	}
	t.isAdvertising = true
	t.peerID = peerID
	t.nickname = nickname
	t.publicKeyDigest = publicKeyDigest
	t.mutex.Unlock()

	t.waitPeripheralReady()

	if peripheral := t.provider.Peripheral(); peripheral != nil {
		err := peripheral.RegisterService(t.config.ServiceUUID, []string{t.config.CharacteristicUUID})
		if err != nil {
			t.log.WithError(err).Warn("erro ao registrar serviço GATT local")
		}
		err = peripheral.StartAdvertising(peerID, t.config.ServiceUUID, publicKeyDigest)
		if err != nil {
			t.log.WithError(err).Warn("erro ao iniciar anúncio no serviço primário")
		}
	}

	if alt := t.provider.AltPeripheral(); alt != nil && alt.Available() {
		if err := alt.StartAdvertising(peerID, nickname); err != nil {
			t.log.WithError(err).Warn("erro ao iniciar anúncio no serviço alternativo")
		}
	}

	if bridge := t.provider.Bridge(); bridge != nil && bridge.Available() {
		ok, err := bridge.StartAdvertisingService(peerID, nickname)
		if err != nil || !ok {
			t.log.WithError(err).Warn("erro ao iniciar serviço de anúncio pela ponte nativa")
		}
	}

	if err := t.StartScanning(nil); err != nil {
		t.log.WithError(err).Warn("erro ao iniciar escaneamento após o anúncio")
	}

	return nil
}

// waitPeripheralReady sonda a prontidão do periférico primário até o limite
// de tentativas configurado. Nunca falha: sem confirmação, o anúncio segue
// em melhor esforço.
func (t *Transport) waitPeripheralReady() {
	peripheral := t.provider.Peripheral()
	if peripheral == nil {
		return
	}

	for attempt := 0; attempt < t.config.ReadyPollAttempts; attempt++ {
		if peripheral.Ready() {
			return
		}
		// A última sondagem não paga uma espera final
		if attempt+1 < t.config.ReadyPollAttempts {
			time.Sleep(t.config.ReadyPollInterval)
		}
	}

	t.log.Warn("periférico não confirmou prontidão, anunciando em melhor esforço")
}

// StopAdvertising para o anúncio. É um no-op se o anúncio não está ativo.
// Cada canal de papel periférico é parado de forma independente: a falha de
// um não bloqueia a parada dos demais. Conexões já estabelecidas não são
// afetadas.
func (t *Transport) StopAdvertising() {
	t.mutex.Lock()
	if !t.isAdvertising {
		t.mutex.Unlock()
		return
	}
	t.isAdvertising = false
	t.mutex.Unlock()

	if peripheral := t.provider.Peripheral(); peripheral != nil {
		if err := peripheral.StopAdvertising(); err != nil {
			t.log.WithError(err).Warn("erro ao parar anúncio no serviço primário")
		}
	}

	if alt := t.provider.AltPeripheral(); alt != nil {
		if err := alt.StopAdvertising(); err != nil {
			t.log.WithError(err).Warn("erro ao parar anúncio no serviço alternativo")
		}
	}

	if bridge := t.provider.Bridge(); bridge != nil {
		if err := bridge.StopAdvertisingService(); err != nil {
			t.log.WithError(err).Warn("erro ao parar serviço de anúncio pela ponte nativa")
		}
	}
}

// StartScanning inicia o escaneamento contínuo por peers. É um no-op se o
// escaneamento já está ativo. Se onPeerDiscovered não for nil, é registrado
// como o assinante do fluxo de descobertas. Uma falha ao iniciar o
// escaneamento subjacente deixa isScanning=false: o chamador nunca é levado
// a crer que o escaneamento está ativo quando não está.
func (t *Transport) StartScanning(onPeerDiscovered func(peerID string, publicKeyDigest []byte)) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if onPeerDiscovered != nil {
		t.onPeerDiscovered = onPeerDiscovered
	}

	if t.isScanning {
		return nil
	}

	scanner := t.provider.Scanner()
	if scanner == nil {
		return ErrScannerUnavailable
	}

	events, cancel, err := scanner.Scan()
	if err != nil {
		if cancel != nil {
			cancel()
		}
		return err
	}

	t.isScanning = true
	t.stopScan = cancel

	done := make(chan struct{})
	t.scanDone = done

	go func() {
		t.consumeScanEvents(events)
		close(done)
	}()

	return nil
}

// StopScanning para o escaneamento. É um no-op se o escaneamento não está
// ativo: a chamada subjacente de parada não é invocada. O cancelamento da
// assinatura e o término da goroutine consumidora acontecem antes do
// retorno, de modo que nenhum callback de descoberta dispara depois.
func (t *Transport) StopScanning() {
	t.mutex.Lock()
	if !t.isScanning {
		t.mutex.Unlock()
		return
	}
	t.isScanning = false
	stop := t.stopScan
	t.stopScan = nil
	done := t.scanDone
	t.scanDone = nil
	t.mutex.Unlock()

	if stop != nil {
		stop()
	}
	if done != nil {
		<-done
	}
}

// consumeScanEvents consome o fluxo de anúncios até o cancelamento da
// assinatura fechar o canal
func (t *Transport) consumeScanEvents(events <-chan platform.Advertisement) {
	for adv := range events {
		t.handleAdvertisement(adv)
	}
}

// handleAdvertisement aplica o filtro de descoberta a um anúncio observado.
// Na aceitação, o assinante de descobertas é notificado e o evento é
// entregue ao gerenciador de conexões, cuja idempotência torna inofensiva a
// reobservação de um peer já registrado.
func (t *Transport) handleAdvertisement(adv platform.Advertisement) {
	t.mutex.RLock()
	scanning := t.isScanning
	ownPeerID := t.peerID
	callback := t.onPeerDiscovered
	t.mutex.RUnlock()

	if !scanning {
		return
	}

	peerID, publicKeyDigest, accepted := t.filter.Evaluate(adv, ownPeerID)
	if !accepted {
		return
	}

	if callback != nil {
		callback(peerID, publicKeyDigest)
	}

	go t.connections.Connect(t.ctx, peerID, adv.Device)
}

// SendMessage envia um payload opaco pela malha, delegando ao roteador de
// despacho. Retorna apenas o booleano agregado de sucesso.
func (t *Transport) SendMessage(payload []byte) bool {
	return t.router.Send(payload)
}

// SetOnPeerDiscovered registra o assinante de descobertas de peers.
// Passar nil cancela a assinatura.
func (t *Transport) SetOnPeerDiscovered(callback func(peerID string, publicKeyDigest []byte)) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.onPeerDiscovered = callback
}

// SetOnMessageReceived registra o assinante de mensagens recebidas.
// Passar nil cancela a assinatura.
func (t *Transport) SetOnMessageReceived(callback func(peerID string, payload []byte)) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.onMessageReceived = callback
}

// SetOnPeerDisconnected registra o assinante de desconexões de peers.
// Passar nil cancela a assinatura.
func (t *Transport) SetOnPeerDisconnected(callback func(peerID string)) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.onPeerDisconnected = callback
}

// HandleDeviceDisconnected informa ao transporte que a conexão com um
// dispositivo caiu. O registro do peer correspondente é destruído; uma
// descoberta futura recomeça do zero.
func (t *Transport) HandleDeviceDisconnected(deviceID string) {
	t.connections.HandleDisconnect(deviceID)
}

// IsAdvertising indica se o anúncio está ativo
func (t *Transport) IsAdvertising() bool {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.isAdvertising
}

// IsScanning indica se o escaneamento está ativo
func (t *Transport) IsScanning() bool {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.isScanning
}

// PeerID retorna o identificador do próprio nó
func (t *Transport) PeerID() string {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.peerID
}

// Nickname retorna o nome de exibição do próprio nó
func (t *Transport) Nickname() string {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.nickname
}

// ConnectedPeerCount retorna o número de peers com conexão pronta
func (t *Transport) ConnectedPeerCount() int {
	return t.connections.ConnectedPeerCount()
}

// ConnectedPeers retorna os identificadores dos peers com conexão pronta
func (t *Transport) ConnectedPeers() []string {
	return t.connections.ConnectedPeers()
}

// Stop encerra o transporte: para anúncio e escaneamento e destrói todos os
// registros de conexão
func (t *Transport) Stop() {
	t.StopAdvertising()
	t.StopScanning()
	t.cancel()
	t.connections.Shutdown()
}

// dispatchMessage encaminha um payload recebido ao assinante de mensagens
func (t *Transport) dispatchMessage(peerID string, payload []byte) {
	t.mutex.RLock()
	callback := t.onMessageReceived
	t.mutex.RUnlock()

	if callback != nil {
		callback(peerID, payload)
	}
}

// dispatchDisconnect encaminha uma desconexão ao assinante de desconexões
func (t *Transport) dispatchDisconnect(peerID string) {
	t.mutex.RLock()
	callback := t.onPeerDisconnected
	t.mutex.RUnlock()

	if callback != nil {
		callback(peerID)
	}
}
