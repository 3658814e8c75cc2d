package transport

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/permissionlesstech/blemesh/platform"
)

// ConnectionState representa o estado de uma conexão com um peer.
// Unknown é implícito (nenhum registro existe); a desconexão remove o
// registro em vez de reter um estado de falha: um evento de descoberta
// futuro recomeça a tentativa do zero.
type ConnectionState int

const (
	StateConnecting ConnectionState = iota + 1
	StateServiceDiscovery
	StateSubscribing
	StateReady
)

// String retorna o nome legível do estado
func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "conectando"
	case StateServiceDiscovery:
		return "descobrindo-servicos"
	case StateSubscribing:
		return "assinando"
	case StateReady:
		return "pronto"
	default:
		return "desconhecido"
	}
}

// ConnectionRecord é o registro de um peer que passou pelo filtro de
// descoberta. Existe no máximo um registro por identificador de peer a
// qualquer momento.
type ConnectionRecord struct {
	PeerID string

	// Handle do dispositivo, referência exclusiva na tabela de conexões da
	// plataforma
	Device platform.Device

	// Características graváveis/notificáveis descobertas no dispositivo, na
	// ordem em que foram enumeradas
	Characteristics []platform.Characteristic

	State ConnectionState
}

// ConnectionManager conduz o ciclo de vida de conexão por peer:
// conectar → descobrir serviços → assinar notificações → pronto.
// O registro de conexões é a única estrutura mutável compartilhada e toda
// mutação acontece sob o mutex, de modo que dois eventos de descoberta quase
// simultâneos para o mesmo identificador nunca criam conexões duplicadas.
type ConnectionManager struct {
	serviceUUID        uuid.UUID
	characteristicUUID uuid.UUID

	registry map[string]*ConnectionRecord
	mutex    sync.RWMutex

	// Callbacks registrados pelo transporte
	onMessageReceived  func(peerID string, payload []byte)
	onPeerDisconnected func(peerID string)

	log *logrus.Entry
}

func newConnectionManager(serviceUUID, characteristicUUID uuid.UUID) *ConnectionManager {
	return &ConnectionManager{
		serviceUUID:        serviceUUID,
		characteristicUUID: characteristicUUID,
		registry:           make(map[string]*ConnectionRecord),
		log:                logrus.WithField("componente", "conexoes"),
	}
}

// Connect conduz uma tentativa única de conexão com o peer descoberto.
// Se já existe um registro para o identificador, retorna imediatamente:
// tentativas de reconexão para um identificador presente são no-ops, mesmo
// para conexões já prontas. A reconexão automática da plataforma fica
// desabilitada: cada conexão é uma tentativa explícita dirigida pelo
// escaneamento contínuo, e nenhuma nova tentativa é agendada em caso de
// falha.
func (cm *ConnectionManager) Connect(ctx context.Context, peerID string, dev platform.Device) {
	cm.mutex.Lock()
	if _, exists := cm.registry[peerID]; exists {
		cm.mutex.Unlock()
		return
	}
	record := &ConnectionRecord{
		PeerID: peerID,
		Device: dev,
		State:  StateConnecting,
	}
	cm.registry[peerID] = record
	cm.mutex.Unlock()

	log := cm.log.WithField("peer", peerID)

	if err := dev.Connect(ctx, false); err != nil {
		cm.abandon(peerID, "conectar", err)
		return
	}

	cm.setState(peerID, StateServiceDiscovery)
	services, err := dev.DiscoverServices(ctx)
	if err != nil {
		cm.abandon(peerID, "descobrir serviços", err)
		return
	}

	characteristic := cm.locateCharacteristic(services)
	if characteristic == nil {
		cm.abandon(peerID, "localizar característica do serviço mesh", nil)
		return
	}

	cm.setState(peerID, StateSubscribing)
	err = characteristic.Subscribe(func(value []byte) {
		cm.handleNotification(peerID, value)
	})
	if err != nil {
		cm.abandon(peerID, "assinar notificações", err)
		return
	}

	cm.mutex.Lock()
	record.Characteristics = []platform.Characteristic{characteristic}
	record.State = StateReady
	cm.mutex.Unlock()

	log.Info("peer conectado e assinado")
}

// locateCharacteristic encontra a característica bem conhecida dentro do
// serviço mesh, comparando UUIDs de forma case-insensitive
func (cm *ConnectionManager) locateCharacteristic(services []platform.Service) platform.Characteristic {
	for _, service := range services {
		parsed, err := uuid.Parse(service.UUID())
		if err != nil || parsed != cm.serviceUUID {
			continue
		}
		for _, characteristic := range service.Characteristics() {
			parsed, err := uuid.Parse(characteristic.UUID())
			if err == nil && parsed == cm.characteristicUUID {
				return characteristic
			}
		}
	}
	return nil
}

// abandon desfaz uma tentativa de conexão que falhou em qualquer estágio.
// O registro é removido por completo: nenhuma nova tentativa é agendada por
// este componente; novas tentativas só acontecem por um evento de
// descoberta independente, já que o escaneamento é contínuo.
func (cm *ConnectionManager) abandon(peerID, stage string, err error) {
	cm.mutex.Lock()
	record, exists := cm.registry[peerID]
	delete(cm.registry, peerID)
	cm.mutex.Unlock()

	log := cm.log.WithField("peer", peerID).WithField("estagio", stage)
	if err != nil {
		log = log.WithError(err)
	}
	log.Warn("tentativa de conexão abandonada")

	if exists && record.Device != nil {
		// Melhor esforço: liberar a referência na tabela da plataforma
		if derr := record.Device.Disconnect(); derr != nil {
			log.WithError(derr).Debug("erro ao desconectar dispositivo")
		}
	}
}

// setState atualiza o estado de um registro, se ele ainda existir
func (cm *ConnectionManager) setState(peerID string, state ConnectionState) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if record, exists := cm.registry[peerID]; exists {
		record.State = state
	}
}

// handleNotification encaminha um payload notificado ao callback de mensagem
// recebida, etiquetado com o identificador do peer de origem
func (cm *ConnectionManager) handleNotification(peerID string, payload []byte) {
	cm.mutex.RLock()
	callback := cm.onMessageReceived
	cm.mutex.RUnlock()

	if callback != nil {
		callback(peerID, payload)
	}
}

// HandleDisconnect remove o registro do peer cuja conexão caiu. O peer volta
// ao estado implícito Unknown; uma descoberta futura inicia uma nova
// tentativa do zero.
func (cm *ConnectionManager) HandleDisconnect(deviceID string) {
	cm.mutex.Lock()
	var peerID string
	for id, record := range cm.registry {
		if record.Device != nil && record.Device.ID() == deviceID {
			peerID = id
			break
		}
	}
	if peerID == "" {
		cm.mutex.Unlock()
		return
	}
	delete(cm.registry, peerID)
	callback := cm.onPeerDisconnected
	cm.mutex.Unlock()

	cm.log.WithField("peer", peerID).Info("peer desconectado")

	if callback != nil {
		callback(peerID)
	}
}

// Shutdown desconecta todos os peers e esvazia o registro
func (cm *ConnectionManager) Shutdown() {
	cm.mutex.Lock()
	records := make([]*ConnectionRecord, 0, len(cm.registry))
	for _, record := range cm.registry {
		records = append(records, record)
	}
	cm.registry = make(map[string]*ConnectionRecord)
	cm.mutex.Unlock()

	for _, record := range records {
		if record.Device == nil {
			continue
		}
		if err := record.Device.Disconnect(); err != nil {
			cm.log.WithError(err).WithField("peer", record.PeerID).
				Debug("erro ao desconectar dispositivo no encerramento")
		}
	}
}

// readyRecords retorna um snapshot dos registros prontos para escrita
func (cm *ConnectionManager) readyRecords() []*ConnectionRecord {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	records := make([]*ConnectionRecord, 0, len(cm.registry))
	for _, record := range cm.registry {
		if record.State == StateReady {
			records = append(records, record)
		}
	}
	return records
}

// ConnectedPeerCount retorna o número de peers com conexão pronta
func (cm *ConnectionManager) ConnectedPeerCount() int {
	return len(cm.readyRecords())
}

// ConnectedPeers retorna os identificadores dos peers com conexão pronta
func (cm *ConnectionManager) ConnectedPeers() []string {
	records := cm.readyRecords()
	peers := make([]string, 0, len(records))
	for _, record := range records {
		peers = append(peers, record.PeerID)
	}
	return peers
}
