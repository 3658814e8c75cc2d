package transport

import (
	"github.com/sirupsen/logrus"

	"github.com/permissionlesstech/blemesh/platform"
)

// DeliveryChannel é um canal de entrega para mensagens de saída. O roteador
// de despacho percorre os canais em ordem de prioridade e para no primeiro
// que reportar sucesso.
type DeliveryChannel interface {
	// Name retorna o nome do canal, usado apenas em logs
	Name() string

	// Available indica se o canal está presente e utilizável no momento
	Available() bool

	// Send tenta entregar o payload por este canal. O booleano indica se a
	// entrega foi aceita; um erro indica falha local do canal e nunca é
	// propagado ao chamador do transporte.
	Send(payload []byte) (bool, error)
}

// altPeripheralChannel entrega mensagens pelo serviço periférico alternativo
// da plataforma. O indicador de sucesso do próprio serviço é a palavra final.
type altPeripheralChannel struct {
	alt platform.AltPeripheral
}

func (c *altPeripheralChannel) Name() string { return "periferico-alternativo" }

func (c *altPeripheralChannel) Available() bool {
	return c.alt != nil && c.alt.Available()
}

func (c *altPeripheralChannel) Send(payload []byte) (bool, error) {
	return c.alt.SendMessage(payload)
}

// bridgeChannel entrega mensagens pela ponte de serviço nativo através de uma
// chamada genérica de requisição/resposta. O valor de retorno da ponte é a
// palavra final.
type bridgeChannel struct {
	bridge platform.NativeBridge
}

func (c *bridgeChannel) Name() string { return "ponte-nativa" }

func (c *bridgeChannel) Available() bool {
	return c.bridge != nil && c.bridge.Available()
}

func (c *bridgeChannel) Send(payload []byte) (bool, error) {
	return c.bridge.SendMessage(payload)
}

// fanOutChannel escreve o payload em todas as características de todos os
// peers registrados, em modo fire-and-forget (sem confirmação do link de
// rádio). Cada escrita é independente: a falha com um peer não bloqueia as
// tentativas com os demais. O envio é considerado bem-sucedido se pelo menos
// uma escrita foi feita sem erro, independentemente de o peer remoto ter
// processado o payload na camada de aplicação.
type fanOutChannel struct {
	connections *ConnectionManager
	log         *logrus.Entry
}

func newFanOutChannel(connections *ConnectionManager) *fanOutChannel {
	return &fanOutChannel{
		connections: connections,
		log:         logrus.WithField("componente", "escrita-direta"),
	}
}

func (c *fanOutChannel) Name() string { return "escrita-direta" }

func (c *fanOutChannel) Available() bool { return c.connections != nil }

func (c *fanOutChannel) Send(payload []byte) (bool, error) {
	sent := 0
	for _, record := range c.connections.readyRecords() {
		for _, characteristic := range record.Characteristics {
			if err := characteristic.WriteWithoutResponse(payload); err != nil {
				c.log.WithError(err).WithField("peer", record.PeerID).
					Warn("erro ao escrever na característica do peer")
				continue
			}
			sent++
		}
	}
	return sent > 0, nil
}
