package platform

import (
	"context"
)

// ManufacturerData representa uma entrada de dados do fabricante em um anúncio BLE.
type ManufacturerData struct {
	CompanyID uint16
	Data      []byte
}

// Advertisement representa um anúncio BLE observado durante o escaneamento.
// É um valor transitório: consumido de forma síncrona pelo filtro de descoberta
// e não retido.
type Advertisement struct {
	// Nome local anunciado pelo dispositivo (carrega o identificador do peer)
	LocalName string

	// UUIDs de serviço anunciados
	ServiceUUIDs []string

	// Dados do fabricante, na ordem em que a plataforma os reportou.
	// A plataforma não garante nenhuma ordenação entre múltiplas entradas.
	ManufacturerData []ManufacturerData

	// Handle para o dispositivo de rádio subjacente
	Device Device
}

// Device representa um dispositivo BLE remoto descoberto pelo scanner.
type Device interface {
	// ID retorna o identificador do dispositivo na plataforma (endereço ou caminho)
	ID() string

	// Connect estabelece a conexão com o dispositivo.
	// autoReconnect controla se a plataforma deve reconectar automaticamente
	// após uma queda de conexão.
	Connect(ctx context.Context, autoReconnect bool) error

	// DiscoverServices enumera os serviços GATT oferecidos pelo dispositivo
	DiscoverServices(ctx context.Context) ([]Service, error)

	// Disconnect encerra a conexão com o dispositivo
	Disconnect() error
}

// Service representa um serviço GATT de um dispositivo remoto.
type Service interface {
	UUID() string
	Characteristics() []Characteristic
}

// Characteristic representa uma característica GATT de um serviço remoto.
type Characteristic interface {
	UUID() string

	// WriteWithoutResponse escreve na característica sem aguardar confirmação
	// do link de rádio
	WriteWithoutResponse(data []byte) error

	// Subscribe habilita notificações e registra o handler para valores notificados
	Subscribe(handler func(value []byte)) error

	// Unsubscribe cancela a inscrição de notificações
	Unsubscribe() error
}

// Scanner define a interface para o papel central (escaneamento) da plataforma.
type Scanner interface {
	// Scan inicia um escaneamento contínuo e retorna o canal de anúncios
	// observados junto com uma função de cancelamento. O cancelamento fecha o
	// canal e garante que nenhum anúncio adicional será entregue.
	Scan() (<-chan Advertisement, func(), error)
}

// Peripheral define a interface para o papel periférico primário da plataforma:
// o serviço GATT local que os peers remotos escrevem.
type Peripheral interface {
	// Ready indica se o hardware do periférico terminou a inicialização.
	// Em algumas plataformas a inicialização é assíncrona.
	Ready() bool

	// RegisterService registra o serviço GATT local com as características
	// informadas, para que centrais remotas possam escrever nele
	RegisterService(serviceUUID string, characteristicUUIDs []string) error

	// StartAdvertising inicia o anúncio BLE com o nome local, o UUID de
	// serviço e os dados do fabricante informados. manufacturerData pode ser
	// nil em plataformas que não suportam esse campo.
	StartAdvertising(localName, serviceUUID string, manufacturerData []byte) error

	// StopAdvertising para o anúncio BLE
	StopAdvertising() error

	// SetOnDataReceived registra o callback para dados escritos por centrais
	// remotas na característica local
	SetOnDataReceived(callback func(deviceID string, value []byte))
}

// AltPeripheral define a interface para o serviço periférico alternativo da
// plataforma, quando existente. Sua ausência é tolerada silenciosamente.
type AltPeripheral interface {
	// Available indica se o serviço alternativo está presente e utilizável
	Available() bool

	// StartAdvertising inicia o anúncio pelo serviço alternativo
	StartAdvertising(peerID, nickname string) error

	// StopAdvertising para o anúncio pelo serviço alternativo
	StopAdvertising() error

	// SendMessage envia uma mensagem pelo serviço alternativo.
	// O booleano retornado é a palavra final sobre o sucesso do envio.
	SendMessage(payload []byte) (bool, error)
}

// NativeBridge define a interface para a ponte de serviço nativo: chamadas
// fora de banda de requisição/resposta para iniciar um serviço de anúncio em
// segundo plano e para enviar mensagens. Ausência ou falha da ponte deve ser
// tolerada silenciosamente.
type NativeBridge interface {
	// Available indica se a ponte está presente nesta plataforma
	Available() bool

	// StartAdvertisingService inicia o serviço de anúncio em segundo plano
	StartAdvertisingService(peerID, nickname string) (bool, error)

	// StopAdvertisingService para o serviço de anúncio em segundo plano
	StopAdvertisingService() error

	// SendMessage envia uma mensagem através da ponte.
	// O booleano retornado é a palavra final sobre o sucesso do envio.
	SendMessage(payload []byte) (bool, error)

	// SetOnMessageReceived registra o callback para mensagens entregues pela ponte
	SetOnMessageReceived(callback func(peerID string, payload []byte))
}

// Provider agrupa os canais BLE disponíveis na plataforma atual.
// Canais não suportados retornam nil e o núcleo do transporte os ignora.
type Provider interface {
	// Scanner retorna o scanner BLE da plataforma
	Scanner() Scanner

	// Peripheral retorna o serviço periférico primário da plataforma
	Peripheral() Peripheral

	// AltPeripheral retorna o serviço periférico alternativo, ou nil
	AltPeripheral() AltPeripheral

	// Bridge retorna a ponte de serviço nativo, ou nil
	Bridge() NativeBridge

	// PlatformName retorna o nome da plataforma
	PlatformName() string
}

// As implementações de Provider vivem em subpacotes por sistema operacional
// (platform/linux para o BlueZ). A seleção é feita por build tags no
// executável que consome o transporte.
