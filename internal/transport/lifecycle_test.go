package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/permissionlesstech/blemesh/platform"
)

func newTestConnectionManager() *ConnectionManager {
	return newConnectionManager(
		uuid.MustParse(ServiceUUID),
		uuid.MustParse(CharacteristicUUID),
	)
}

func TestConnectionManager(t *testing.T) {
	ctx := context.Background()

	t.Run("Conexão completa deixa o registro pronto", func(t *testing.T) {
		cm := newTestConnectionManager()
		char := &fakeCharacteristic{uuid: CharacteristicUUID}
		dev := meshDevice("dev-1", char)

		cm.Connect(ctx, "11223344", dev)

		if count := cm.ConnectedPeerCount(); count != 1 {
			t.Fatalf("Peers prontos esperados: 1, obtidos: %d", count)
		}
		if peers := cm.ConnectedPeers(); len(peers) != 1 || peers[0] != "11223344" {
			t.Errorf("Peers esperados: [11223344], obtidos: %v", peers)
		}
		if !char.subscribed() {
			t.Error("A característica deveria estar com notificações assinadas")
		}
		if dev.lastAutoReconnect {
			t.Error("A reconexão automática da plataforma deveria ficar desabilitada")
		}
	})

	t.Run("Segunda descoberta para o mesmo peer é no-op", func(t *testing.T) {
		cm := newTestConnectionManager()
		char := &fakeCharacteristic{uuid: CharacteristicUUID}
		first := meshDevice("dev-1", char)
		second := meshDevice("dev-2", &fakeCharacteristic{uuid: CharacteristicUUID})

		cm.Connect(ctx, "11223344", first)
		cm.Connect(ctx, "11223344", second)

		if second.connectCount() != 0 {
			t.Error("O segundo dispositivo não deveria ser conectado")
		}
		if count := cm.ConnectedPeerCount(); count != 1 {
			t.Errorf("Peers prontos esperados: 1, obtidos: %d", count)
		}
	})

	t.Run("Descobertas concorrentes criam uma única conexão", func(t *testing.T) {
		cm := newTestConnectionManager()

		const attempts = 16
		devices := make([]*fakeDevice, attempts)
		var wg sync.WaitGroup

		for i := 0; i < attempts; i++ {
			devices[i] = meshDevice(
				fmt.Sprintf("dev-%d", i),
				&fakeCharacteristic{uuid: CharacteristicUUID},
			)
			wg.Add(1)
			go func(dev *fakeDevice) {
				defer wg.Done()
				cm.Connect(ctx, "11223344", dev)
			}(devices[i])
		}
		wg.Wait()

		total := 0
		for _, dev := range devices {
			total += dev.connectCount()
		}
		if total != 1 {
			t.Errorf("Conexões esperadas: 1, obtidas: %d", total)
		}
		if count := cm.ConnectedPeerCount(); count != 1 {
			t.Errorf("Peers prontos esperados: 1, obtidos: %d", count)
		}
	})

	t.Run("Falha ao conectar remove o registro", func(t *testing.T) {
		cm := newTestConnectionManager()
		failing := &fakeDevice{id: "dev-1", connectErr: errors.New("rádio ocupado")}

		cm.Connect(ctx, "11223344", failing)

		if count := cm.ConnectedPeerCount(); count != 0 {
			t.Fatalf("Peers prontos esperados: 0, obtidos: %d", count)
		}

		// Uma descoberta futura recomeça do zero
		retry := meshDevice("dev-2", &fakeCharacteristic{uuid: CharacteristicUUID})
		cm.Connect(ctx, "11223344", retry)

		if retry.connectCount() != 1 {
			t.Error("Uma nova descoberta deveria iniciar uma nova tentativa")
		}
	})

	t.Run("Falha na descoberta de serviços abandona e desconecta", func(t *testing.T) {
		cm := newTestConnectionManager()
		dev := &fakeDevice{id: "dev-1", discoverErr: errors.New("timeout")}

		cm.Connect(ctx, "11223344", dev)

		if count := cm.ConnectedPeerCount(); count != 0 {
			t.Errorf("Peers prontos esperados: 0, obtidos: %d", count)
		}
		if dev.disconnectCount() != 1 {
			t.Error("O dispositivo deveria ser desconectado no abandono")
		}
	})

	t.Run("Serviço sem a característica esperada abandona", func(t *testing.T) {
		cm := newTestConnectionManager()
		dev := &fakeDevice{
			id: "dev-1",
			services: []platform.Service{
				&fakeService{
					uuid: ServiceUUID,
					characteristics: []platform.Characteristic{
						&fakeCharacteristic{uuid: "00002A37-0000-1000-8000-00805F9B34FB"},
					},
				},
			},
		}

		cm.Connect(ctx, "11223344", dev)

		if count := cm.ConnectedPeerCount(); count != 0 {
			t.Errorf("Peers prontos esperados: 0, obtidos: %d", count)
		}
		if dev.disconnectCount() != 1 {
			t.Error("O dispositivo deveria ser desconectado no abandono")
		}
	})

	t.Run("Falha na assinatura abandona", func(t *testing.T) {
		cm := newTestConnectionManager()
		char := &fakeCharacteristic{
			uuid:         CharacteristicUUID,
			subscribeErr: errors.New("gatt indisponível"),
		}
		dev := meshDevice("dev-1", char)

		cm.Connect(ctx, "11223344", dev)

		if count := cm.ConnectedPeerCount(); count != 0 {
			t.Errorf("Peers prontos esperados: 0, obtidos: %d", count)
		}
	})

	t.Run("UUIDs são comparados sem diferenciar caixa", func(t *testing.T) {
		cm := newTestConnectionManager()
		char := &fakeCharacteristic{uuid: "6e400002-b5a3-f393-e0a9-e50e24dcca9e"}
		dev := &fakeDevice{
			id: "dev-1",
			services: []platform.Service{
				&fakeService{
					uuid:            "6e400001-b5a3-f393-e0a9-e50e24dcca9e",
					characteristics: []platform.Characteristic{char},
				},
			},
		}

		cm.Connect(ctx, "11223344", dev)

		if count := cm.ConnectedPeerCount(); count != 1 {
			t.Errorf("Peers prontos esperados: 1, obtidos: %d", count)
		}
	})

	t.Run("Notificação chega etiquetada com o peer", func(t *testing.T) {
		cm := newTestConnectionManager()

		var gotPeerID string
		var gotPayload []byte
		cm.onMessageReceived = func(peerID string, payload []byte) {
			gotPeerID = peerID
			gotPayload = payload
		}

		char := &fakeCharacteristic{uuid: CharacteristicUUID}
		cm.Connect(ctx, "11223344", meshDevice("dev-1", char))

		char.notify([]byte("olá"))

		if gotPeerID != "11223344" {
			t.Errorf("Peer esperado: 11223344, obtido: %s", gotPeerID)
		}
		if !bytes.Equal(gotPayload, []byte("olá")) {
			t.Errorf("Payload esperado: olá, obtido: %s", gotPayload)
		}
	})

	t.Run("Desconexão remove o registro e notifica", func(t *testing.T) {
		cm := newTestConnectionManager()

		notified := 0
		var lostPeer string
		cm.onPeerDisconnected = func(peerID string) {
			notified++
			lostPeer = peerID
		}

		char := &fakeCharacteristic{uuid: CharacteristicUUID}
		cm.Connect(ctx, "11223344", meshDevice("dev-1", char))

		cm.HandleDisconnect("dev-1")

		if count := cm.ConnectedPeerCount(); count != 0 {
			t.Errorf("Peers prontos esperados: 0, obtidos: %d", count)
		}
		if notified != 1 || lostPeer != "11223344" {
			t.Errorf("Notificação de desconexão esperada para 11223344, obtido: %s (%d vezes)", lostPeer, notified)
		}

		// Desconexão de dispositivo desconhecido é um no-op
		cm.HandleDisconnect("dev-1")
		if notified != 1 {
			t.Error("Desconexão repetida não deveria notificar de novo")
		}
	})

	t.Run("Shutdown desconecta todos os peers", func(t *testing.T) {
		cm := newTestConnectionManager()

		first := meshDevice("dev-1", &fakeCharacteristic{uuid: CharacteristicUUID})
		second := meshDevice("dev-2", &fakeCharacteristic{uuid: CharacteristicUUID})
		cm.Connect(ctx, "11223344", first)
		cm.Connect(ctx, "55667788", second)

		cm.Shutdown()

		if count := cm.ConnectedPeerCount(); count != 0 {
			t.Errorf("Peers prontos esperados: 0, obtidos: %d", count)
		}
		if first.disconnectCount() != 1 || second.disconnectCount() != 1 {
			t.Error("Todos os dispositivos deveriam ser desconectados no encerramento")
		}
	})
}
